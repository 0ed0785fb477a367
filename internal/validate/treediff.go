package validate

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"btrfs-diff/internal/change"
	"btrfs-diff/internal/snapshot"
)

// RoundTrip applies a change list to the OLD snapshot's path set and
// compares the outcome with the NEW snapshot's path set. A correct
// diff transforms one into the other exactly; any residue is rendered
// as a unified diff (expected = NEW, actual = OLD + changes).
//
// The comparison is set-level by design: content and metadata are out
// of the diff's contract.
func RoundTrip(changes []change.FileChange, pair *snapshot.Pair) (ok bool, report string, err error) {
	oldEntries, err := pair.Old.Contents()
	if err != nil {
		return false, "", err
	}
	newEntries, err := pair.New.Contents()
	if err != nil {
		return false, "", err
	}

	got := Apply(snapshot.PathSet(oldEntries), changes)
	want := snapshot.PathSet(newEntries)

	if setsEqual(got, want) {
		return true, "", nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(joinSorted(want)),
		B:        difflib.SplitLines(joinSorted(got)),
		FromFile: "new-snapshot",
		ToFile:   "old-snapshot+changes",
		Context:  3,
	})
	if err != nil {
		return false, "", err
	}
	return false, diff, nil
}

// Apply replays a change list onto a path set in the prescribed
// order: deletions, then renames, then modifications. Directory
// deletions and renames cover their subtrees.
func Apply(paths map[string]struct{}, changes []change.FileChange) map[string]struct{} {
	out := make(map[string]struct{}, len(paths))
	for p := range paths {
		out[p] = struct{}{}
	}

	for _, fc := range changes {
		if fc.Action == change.ActionDeleted {
			removeSubtree(out, fc.Path)
		}
	}
	for _, fc := range changes {
		if fc.Action == change.ActionRenamed {
			moveSubtree(out, fc.Path, fc.Details.PathTo)
		}
	}
	for _, fc := range changes {
		if fc.Action == change.ActionModified {
			out[fc.Path] = struct{}{}
			addParents(out, fc.Path)
		}
	}
	return out
}

func removeSubtree(set map[string]struct{}, root string) {
	delete(set, root)
	prefix := root + "/"
	for p := range set {
		if strings.HasPrefix(p, prefix) {
			delete(set, p)
		}
	}
}

func moveSubtree(set map[string]struct{}, from, to string) {
	if _, ok := set[from]; ok {
		delete(set, from)
		set[to] = struct{}{}
	} else {
		// Rename of a path the scan never saw (e.g. permission
		// boundary); record the destination anyway.
		set[to] = struct{}{}
	}
	addParents(set, to)
	prefix := from + "/"
	var moved []string
	for p := range set {
		if strings.HasPrefix(p, prefix) {
			moved = append(moved, p)
		}
	}
	for _, p := range moved {
		delete(set, p)
		set[to+"/"+p[len(prefix):]] = struct{}{}
	}
}

func addParents(set map[string]struct{}, path string) {
	for {
		i := strings.LastIndexByte(path, '/')
		if i < 0 {
			return
		}
		path = path[:i]
		set[path] = struct{}{}
	}
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for p := range a {
		if _, ok := b[p]; !ok {
			return false
		}
	}
	return true
}

func joinSorted(set map[string]struct{}) string {
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return ""
	}
	return strings.Join(paths, "\n") + "\n"
}
