package snapshot

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// snapshotsDir is the conventional nested-snapshot directory excluded
// from scans; it holds sibling snapshots, not tree content.
const snapshotsDir = ".snapshots"

// Entry is one object found by a tree scan.
type Entry struct {
	// Path is snapshot-relative, forward-slash.
	Path string

	// Dir marks directories.
	Dir bool

	// Symlink marks symlinks; Target is their link text.
	Symlink bool
	Target  string
}

// Contents walks the snapshot and returns every file, directory and
// symlink under it, sorted by path. Unreadable entries are skipped;
// the walk does not follow symlinks.
func (t *Tree) Contents() ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == t.root {
			return nil
		}
		rel, relErr := filepath.Rel(t.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() && d.Name() == snapshotsDir {
			return filepath.SkipDir
		}

		e := Entry{Path: rel, Dir: d.IsDir()}
		if d.Type()&fs.ModeSymlink != 0 {
			e.Symlink = true
			if target, lerr := os.Readlink(path); lerr == nil {
				e.Target = target
			}
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// PathSet flattens a scan into the set of paths, for set-level
// comparisons between snapshots.
func PathSet(entries []Entry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.Path] = struct{}{}
	}
	return set
}

// Discover lists snapshot directories directly under root whose names
// start with the given prefix ('*' and anything after it is ignored),
// sorted lexicographically. By the naming convention of timestamped
// snapshots, lexicographic order is temporal order.
func Discover(root, pattern string) ([]string, error) {
	prefix := pattern
	if i := strings.IndexByte(prefix, '*'); i >= 0 {
		prefix = prefix[:i]
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if prefix != "" && !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
