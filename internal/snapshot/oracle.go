// Package snapshot gives the parser its view of the two live
// snapshot trees: existence/kind oracles backed by lstat, a
// deterministic tree scanner, snapshot discovery for batch
// validation, and the btrfs send subprocess source.
//
// Conventions:
//   - All paths handed to oracles are snapshot-relative.
//   - Lookups never follow symlinks (a dangling symlink exists).
//   - Kind lookups are cached per path for the lifetime of a Tree.
package snapshot

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"btrfs-diff/internal/change"
)

// Tree is one mounted snapshot root.
type Tree struct {
	root  string
	kinds map[string]change.Kind
}

// NewTree validates that the snapshot root exists and returns a Tree
// over it.
func NewTree(root string) (*Tree, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, errors.New("snapshot root is not a directory: " + root)
	}
	return &Tree{root: root, kinds: make(map[string]change.Kind)}, nil
}

// Root returns the snapshot root path.
func (t *Tree) Root() string { return t.root }

// Exists reports whether the relative path names anything in the
// snapshot, without following symlinks.
func (t *Tree) Exists(rel string) (bool, error) {
	var st unix.Stat_t
	err := unix.Lstat(filepath.Join(t.root, rel), &st)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENOTDIR):
		return false, nil
	default:
		return false, err
	}
}

// Kind resolves what the relative path names in the snapshot. Found
// kinds are cached; a missing path resolves to unknown without error
// and is not cached.
func (t *Tree) Kind(rel string) (change.Kind, error) {
	if k, ok := t.kinds[rel]; ok {
		return k, nil
	}
	var st unix.Stat_t
	err := unix.Lstat(filepath.Join(t.root, rel), &st)
	if err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTDIR) {
			return change.KindUnknown, nil
		}
		return change.KindUnknown, err
	}
	k := kindFromMode(st.Mode)
	t.kinds[rel] = k
	return k, nil
}

func kindFromMode(mode uint32) change.Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return change.KindDirectory
	case unix.S_IFREG:
		return change.KindRegular
	case unix.S_IFLNK:
		return change.KindSymlink
	default:
		return change.KindSpecial
	}
}

// Pair couples the OLD and NEW snapshot trees into the oracle the
// parser consumes.
type Pair struct {
	Old *Tree
	New *Tree
}

// NewPair opens both snapshot roots.
func NewPair(oldRoot, newRoot string) (*Pair, error) {
	oldTree, err := NewTree(oldRoot)
	if err != nil {
		return nil, err
	}
	newTree, err := NewTree(newRoot)
	if err != nil {
		return nil, err
	}
	return &Pair{Old: oldTree, New: newTree}, nil
}

// OldExists implements delta.Oracle.
func (p *Pair) OldExists(path string) (bool, error) { return p.Old.Exists(path) }

// NewExists implements delta.Oracle.
func (p *Pair) NewExists(path string) (bool, error) { return p.New.Exists(path) }

// NewKind implements delta.Oracle.
func (p *Pair) NewKind(path string) (change.Kind, error) { return p.New.Kind(path) }
