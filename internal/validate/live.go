package validate

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"btrfs-diff/internal/change"
	"btrfs-diff/internal/snapshot"
)

// Result accumulates the counters of one sampled validation pass.
// Which counters are populated depends on the record type validated.
type Result struct {
	// Symlinks.
	Validated         int `json:"validated"`
	Missing           int `json:"missing"`
	MismatchedTargets int `json:"mismatched_targets,omitempty"`

	// Deletions.
	ActuallyDeleted int `json:"actually_deleted,omitempty"`
	FoundInNew      int `json:"found_in_new,omitempty"`
	MissingFromOld  int `json:"missing_from_old,omitempty"`

	// Modifications.
	FileExists      int `json:"file_exists,omitempty"`
	FileMissing     int `json:"file_missing,omitempty"`
	MtimeInRange    int `json:"mtime_in_range,omitempty"`
	MtimeOutOfRange int `json:"mtime_out_of_range,omitempty"`

	PermissionErrors int `json:"permission_errors,omitempty"`
}

// Symlinks checks up to max symlink records directly against the NEW
// snapshot: the path must be a symlink and its target must match the
// recorded path_link. Broken symlinks still validate; the diff
// records link text, not reachability.
func Symlinks(records []change.FileChange, newTree *snapshot.Tree, max int) Result {
	var r Result
	for _, fc := range sample(records, max) {
		full := filepath.Join(newTree.Root(), fc.Path)
		st, err := os.Lstat(full)
		if err != nil {
			r.Missing++
			continue
		}
		if st.Mode()&os.ModeSymlink == 0 {
			r.Missing++
			continue
		}
		target, err := os.Readlink(full)
		if err != nil {
			r.Missing++
			continue
		}
		if target == fc.Details.PathLink {
			r.Validated++
		} else {
			r.MismatchedTargets++
		}
	}
	return r
}

// Deletions checks up to max deleted records: the path must exist in
// OLD and be gone from NEW.
func Deletions(records []change.FileChange, pair *snapshot.Pair, max int) Result {
	var r Result
	for _, fc := range sample(records, max) {
		inOld, err := pair.OldExists(fc.Path)
		if err != nil {
			r.PermissionErrors++
			continue
		}
		if !inOld {
			r.MissingFromOld++
			continue
		}
		inNew, err := pair.NewExists(fc.Path)
		if err != nil {
			r.PermissionErrors++
			continue
		}
		if inNew {
			r.FoundInNew++
		} else {
			r.ActuallyDeleted++
		}
	}
	return r
}

// Modifications checks up to max modified records: the path must
// exist in NEW, and when a snapshot time window is known, its mtime
// should fall inside it. A zero window skips the mtime check.
func Modifications(records []change.FileChange, newTree *snapshot.Tree, windowStart, windowEnd time.Time, max int) Result {
	var r Result
	for _, fc := range sample(records, max) {
		st, err := os.Lstat(filepath.Join(newTree.Root(), fc.Path))
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				r.PermissionErrors++
			} else {
				r.FileMissing++
			}
			continue
		}
		r.FileExists++

		if windowStart.IsZero() || windowEnd.IsZero() {
			continue
		}
		mtime := st.ModTime()
		if !mtime.Before(windowStart) && !mtime.After(windowEnd) {
			r.MtimeInRange++
		} else {
			r.MtimeOutOfRange++
		}
	}
	return r
}

func sample(records []change.FileChange, max int) []change.FileChange {
	if max <= 0 || max >= len(records) {
		return records
	}
	return records[:max]
}
