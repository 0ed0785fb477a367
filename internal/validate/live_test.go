package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"btrfs-diff/internal/change"
	"btrfs-diff/internal/snapshot"
)

// buildTrees creates an OLD/NEW snapshot pair on disk:
//
//	OLD: gone, same, mod, lnk -> old-target
//	NEW: same, mod (rewritten), lnk -> target, added
func buildTrees(t *testing.T) *snapshot.Pair {
	t.Helper()
	oldRoot := t.TempDir()
	newRoot := t.TempDir()

	mustWrite := func(root, name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite(oldRoot, "gone", "x")
	mustWrite(oldRoot, "same", "s")
	mustWrite(oldRoot, "mod", "before")
	if err := os.Symlink("old-target", filepath.Join(oldRoot, "lnk")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	mustWrite(newRoot, "same", "s")
	mustWrite(newRoot, "mod", "after!")
	mustWrite(newRoot, "added", "a")
	if err := os.Symlink("target", filepath.Join(newRoot, "lnk")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	pair, err := snapshot.NewPair(oldRoot, newRoot)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	return pair
}

func TestSymlinksValidation(t *testing.T) {
	pair := buildTrees(t)
	records := []change.FileChange{
		{Path: "lnk", Action: change.ActionModified, Details: change.Details{Command: "symlink", PathLink: "target"}},
		{Path: "absent", Action: change.ActionModified, Details: change.Details{Command: "symlink", PathLink: "t"}},
		{Path: "same", Action: change.ActionModified, Details: change.Details{Command: "symlink", PathLink: "t"}},
	}
	r := Symlinks(records, pair.New, 0)
	if r.Validated != 1 {
		t.Fatalf("validated %d, want 1", r.Validated)
	}
	if r.Missing != 2 {
		t.Fatalf("missing %d, want 2 (absent path + non-symlink)", r.Missing)
	}

	mismatch := []change.FileChange{
		{Path: "lnk", Action: change.ActionModified, Details: change.Details{Command: "symlink", PathLink: "elsewhere"}},
	}
	r = Symlinks(mismatch, pair.New, 0)
	if r.MismatchedTargets != 1 {
		t.Fatalf("mismatched %d, want 1", r.MismatchedTargets)
	}
}

func TestDeletionsValidation(t *testing.T) {
	pair := buildTrees(t)
	records := []change.FileChange{
		{Path: "gone", Action: change.ActionDeleted, Details: change.Details{Command: "unlink"}},
		{Path: "same", Action: change.ActionDeleted, Details: change.Details{Command: "unlink"}},
		{Path: "never", Action: change.ActionDeleted, Details: change.Details{Command: "unlink"}},
	}
	r := Deletions(records, pair, 0)
	if r.ActuallyDeleted != 1 {
		t.Fatalf("actually deleted %d, want 1", r.ActuallyDeleted)
	}
	if r.FoundInNew != 1 {
		t.Fatalf("found in new %d, want 1", r.FoundInNew)
	}
	if r.MissingFromOld != 1 {
		t.Fatalf("missing from old %d, want 1", r.MissingFromOld)
	}
}

func TestModificationsValidation(t *testing.T) {
	pair := buildTrees(t)
	records := []change.FileChange{
		{Path: "mod", Action: change.ActionModified, Details: change.Details{Command: "update_extent"}},
		{Path: "added", Action: change.ActionModified, Details: change.Details{Command: "mkfile"}},
		{Path: "vanished", Action: change.ActionModified, Details: change.Details{Command: "mkfile"}},
	}

	// Zero window: existence only.
	r := Modifications(records, pair.New, time.Time{}, time.Time{}, 0)
	if r.FileExists != 2 || r.FileMissing != 1 {
		t.Fatalf("exists/missing = %d/%d, want 2/1", r.FileExists, r.FileMissing)
	}
	if r.MtimeInRange != 0 || r.MtimeOutOfRange != 0 {
		t.Fatalf("mtime counters populated without a window")
	}

	// A generous window around now puts every fresh file in range.
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	r = Modifications(records, pair.New, start, end, 0)
	if r.MtimeInRange != 2 {
		t.Fatalf("in range %d, want 2", r.MtimeInRange)
	}
}

func TestSampleLimits(t *testing.T) {
	pair := buildTrees(t)
	records := []change.FileChange{
		{Path: "gone", Action: change.ActionDeleted, Details: change.Details{Command: "unlink"}},
		{Path: "never", Action: change.ActionDeleted, Details: change.Details{Command: "unlink"}},
	}
	r := Deletions(records, pair, 1)
	if total := r.ActuallyDeleted + r.FoundInNew + r.MissingFromOld + r.PermissionErrors; total != 1 {
		t.Fatalf("sampled total %d, want 1", total)
	}
}

func TestRoundTripOnRealTrees(t *testing.T) {
	pair := buildTrees(t)
	changes := []change.FileChange{
		{Path: "gone", Action: change.ActionDeleted, Details: change.Details{Command: "unlink"}},
		{Path: "added", Action: change.ActionModified, Details: change.Details{Command: "mkfile"}},
		{Path: "mod", Action: change.ActionModified, Details: change.Details{Command: "update_extent"}},
	}
	ok, report, err := RoundTrip(changes, pair)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if !ok {
		t.Fatalf("round trip failed:\n%s", report)
	}

	// Dropping the deletion makes the replay diverge and the report
	// name the leftover path.
	ok, report, err = RoundTrip(changes[1:], pair)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
	if !strings.Contains(report, "gone") {
		t.Fatalf("report does not mention the leftover path:\n%s", report)
	}
}
