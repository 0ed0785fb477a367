package report

import (
	"fmt"
	"io"

	"btrfs-diff/internal/validate"
)

// ValidationSet groups the per-type results of one validation run.
// Nil entries mean no records of that type were present.
type ValidationSet struct {
	Total         int
	Symlinks      *validate.Result
	Deletions     *validate.Result
	Modifications *validate.Result
}

// WriteValidation writes the counters and accuracy of one validation
// run in a fixed order.
func WriteValidation(w io.Writer, v ValidationSet) {
	fmt.Fprintf(w, "Validation results (%d total changes):\n", v.Total)

	if r := v.Symlinks; r != nil {
		fmt.Fprintf(w, "\nSymlinks:\n")
		fmt.Fprintf(w, "  Validated: %d\n", r.Validated)
		fmt.Fprintf(w, "  Missing: %d\n", r.Missing)
		fmt.Fprintf(w, "  Mismatched targets: %d\n", r.MismatchedTargets)
		fmt.Fprintf(w, "  Accuracy: %s\n",
			accuracy(r.Validated, r.Validated+r.Missing+r.MismatchedTargets))
	}
	if r := v.Deletions; r != nil {
		fmt.Fprintf(w, "\nDeletions:\n")
		fmt.Fprintf(w, "  Actually deleted: %d\n", r.ActuallyDeleted)
		fmt.Fprintf(w, "  Found in new: %d\n", r.FoundInNew)
		fmt.Fprintf(w, "  Missing from old: %d\n", r.MissingFromOld)
		fmt.Fprintf(w, "  Accuracy: %s\n",
			accuracy(r.ActuallyDeleted, r.ActuallyDeleted+r.FoundInNew))
	}
	if r := v.Modifications; r != nil {
		fmt.Fprintf(w, "\nModifications:\n")
		fmt.Fprintf(w, "  File exists: %d\n", r.FileExists)
		fmt.Fprintf(w, "  File missing: %d\n", r.FileMissing)
		fmt.Fprintf(w, "  Timing in range: %d\n", r.MtimeInRange)
		fmt.Fprintf(w, "  Timing out of range: %d\n", r.MtimeOutOfRange)
		fmt.Fprintf(w, "  Existence accuracy: %s\n",
			accuracy(r.FileExists, r.FileExists+r.FileMissing))
	}
}

// WritePairLine writes one row of the comprehensive batch run.
func WritePairLine(w io.Writer, oldName, newName string, v ValidationSet) {
	sym, del, mod := "N/A", "N/A", "N/A"
	if r := v.Symlinks; r != nil {
		sym = ratio(r.Validated, r.Validated+r.Missing+r.MismatchedTargets)
	}
	if r := v.Deletions; r != nil {
		del = ratio(r.ActuallyDeleted, r.ActuallyDeleted+r.FoundInNew)
	}
	if r := v.Modifications; r != nil {
		mod = ratio(r.FileExists, r.FileExists+r.FileMissing)
	}
	fmt.Fprintf(w, "%s -> %s\ttotal=%d\tsymlinks=%s\tdeletions=%s\tmodifications=%s\n",
		oldName, newName, v.Total, sym, del, mod)
}

func accuracy(ok, total int) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(ok)/float64(total)*100)
}

func ratio(ok, total int) string {
	if total == 0 {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d", ok, total)
}
