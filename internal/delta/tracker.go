package delta

import (
	"fmt"
	"regexp"
	"sort"

	"btrfs-diff/internal/change"
	"btrfs-diff/internal/sendstream"
)

// orphanRe matches the synthetic names the stream gives newly created
// inodes before renaming them into place: o<ino>-<gen>-<n>, as any
// whole component of the path.
var orphanRe = regexp.MustCompile(`(^|/)o\d+-\d+-\d+(/|$)`)

// IsTemporaryPath reports whether any component of the path is a
// stream-synthesized temporary name.
func IsTemporaryPath(path string) bool {
	return orphanRe.MatchString(path)
}

// inode is the tracked state of one filesystem object. The tracker
// owns all inode values in a single table keyed by identifier; the
// reverse path index stores only identifiers.
type inode struct {
	id uint64

	wireIno    uint64
	hasWireIno bool

	kind      change.Kind
	noDirHint bool // detached via unlink: cannot be a directory

	primary string
	paths   map[string]struct{}

	// initial is the set of names this inode held when the stream
	// first referenced it. Empty for inodes created in the stream.
	initial map[string]struct{}

	// attachedBy remembers the command that attached each current
	// name, so unpaired attaches can carry an honest label.
	attachedBy map[string]sendstream.CmdKind

	created bool
	dirty   bool

	size    uint64
	hasSize bool

	target string // symlink target, set only for symlinks created in the stream

	cmd    sendstream.CmdKind // highest-priority content/create label
	cmdPri int

	metaCmd sendstream.CmdKind // last metadata-only command
	hasMeta bool
}

func (n *inode) deleted() bool { return len(n.paths) == 0 }

// label records a candidate details.command for the inode, keeping
// the highest-priority one seen so far.
func (n *inode) label(c sendstream.CmdKind) {
	if p := commandPriority(c); p > n.cmdPri {
		n.cmd, n.cmdPri = c, p
	}
}

// tracker maintains the inode table and the single-valued reverse
// index from path to inode identifier. Synthetic identifiers (top bit
// set) stand in for pre-existing inodes the stream references without
// an ino attribute.
type tracker struct {
	inodes map[uint64]*inode
	order  []uint64 // insertion order, for a deterministic final walk
	byPath map[string]uint64

	synth uint64 // next synthetic identifier

	oracle    Oracle
	kindCache map[string]change.Kind

	strict bool
	diags  *diagnostics
}

const syntheticBase = uint64(1) << 63

func newTracker(oracle Oracle, strict bool, diags *diagnostics) *tracker {
	return &tracker{
		inodes:    make(map[uint64]*inode),
		byPath:    make(map[string]uint64),
		synth:     syntheticBase,
		oracle:    oracle,
		kindCache: make(map[string]change.Kind),
		strict:    strict,
		diags:     diags,
	}
}

// violation records a tracker invariant violation: a diagnostic under
// the default policy, a hard error in strict mode.
func (t *tracker) violation(format string, args ...any) error {
	if t.strict {
		return fmt.Errorf("tracker: "+format, args...)
	}
	t.diags.addf(stageTrack, format, args...)
	return nil
}

// lookupKind consults the NEW-snapshot oracle for the kind of a
// pre-existing path, caching the answer per path.
func (t *tracker) lookupKind(path string) change.Kind {
	if k, ok := t.kindCache[path]; ok {
		return k
	}
	k := change.KindUnknown
	if t.oracle != nil {
		if got, err := t.oracle.NewKind(path); err == nil {
			k = got
		}
	}
	t.kindCache[path] = k
	return k
}

// seed installs a pre-existing inode first referenced at path. Its
// initial path set is exactly {path}; kind comes from the oracle when
// it answers.
func (t *tracker) seed(path string) *inode {
	id := t.synth
	t.synth++
	n := &inode{
		id:         id,
		kind:       t.lookupKind(path),
		primary:    path,
		paths:      map[string]struct{}{path: {}},
		initial:    map[string]struct{}{path: {}},
		attachedBy: make(map[string]sendstream.CmdKind),
	}
	t.inodes[id] = n
	t.order = append(t.order, id)
	t.byPath[path] = id
	return n
}

// at returns the inode currently holding path, seeding a pre-existing
// one when the path is unknown.
func (t *tracker) at(path string) *inode {
	if id, ok := t.byPath[path]; ok {
		return t.inodes[id]
	}
	return t.seed(path)
}

// allocate installs an inode created by the stream and attaches its
// first name. Reusing a live wire ino is an invariant violation.
func (t *tracker) allocate(e effect) error {
	id := e.ino
	if !e.hasIno {
		id = t.synth
		t.synth++
	}
	if prev, ok := t.inodes[id]; ok && !prev.deleted() {
		if err := t.violation("duplicate inode %d at %q (already at %q)", id, e.path, prev.primary); err != nil {
			return err
		}
		// Treat as a re-create of the same identity; the previous
		// incarnation's names leave the reverse index.
		for p := range prev.paths {
			if cur, held := t.byPath[p]; held && cur == id {
				delete(t.byPath, p)
			}
		}
	}
	n := &inode{
		id:         id,
		wireIno:    e.ino,
		hasWireIno: e.hasIno,
		kind:       e.kind,
		created:    true,
		paths:      make(map[string]struct{}),
		initial:    make(map[string]struct{}),
		attachedBy: make(map[string]sendstream.CmdKind),
		target:     e.target,
	}
	n.label(e.cmd)
	if _, ok := t.inodes[id]; !ok {
		t.order = append(t.order, id)
	}
	t.inodes[id] = n
	t.attach(n, e.path, e.cmd)
	return nil
}

// attach adds a name to an inode and updates the reverse index. A
// prior holder of the name is implicitly detached first; some streams
// rely on that, so it is logged rather than rejected.
func (t *tracker) attach(n *inode, path string, by sendstream.CmdKind) {
	if prevID, ok := t.byPath[path]; ok && prevID != n.id {
		prev := t.inodes[prevID]
		t.diags.addf(stageTrack, "implicit detach of %q from inode %d (reattached by %s)", path, prevID, by)
		t.removePath(prev, path)
	}
	n.paths[path] = struct{}{}
	n.attachedBy[path] = by
	t.byPath[path] = n.id
	if n.primary == "" {
		n.primary = path
	}
}

// removePath drops a name from an inode and re-elects the primary as
// the lexicographically smallest remaining name.
func (t *tracker) removePath(n *inode, path string) {
	delete(n.paths, path)
	delete(n.attachedBy, path)
	if cur, ok := t.byPath[path]; ok && cur == n.id {
		delete(t.byPath, path)
	}
	if n.primary == path {
		n.primary = smallestPath(n.paths)
	}
}

// detach removes a name in response to unlink/rmdir. Unknown names
// seed a pre-existing inode first so the deletion is attributable.
func (t *tracker) detach(e effect) error {
	n := t.at(e.path)
	switch e.cmd {
	case sendstream.CmdRmdir:
		if n.kind != change.KindUnknown && n.kind != change.KindDirectory {
			if err := t.violation("rmdir %q on %s inode %d", e.path, n.kind, n.id); err != nil {
				return err
			}
		}
		if n.kind == change.KindUnknown {
			n.kind = change.KindDirectory
		}
	case sendstream.CmdUnlink:
		if n.kind == change.KindDirectory {
			if err := t.violation("unlink %q on directory inode %d", e.path, n.id); err != nil {
				return err
			}
		}
		if n.kind == change.KindUnknown {
			n.noDirHint = true
		}
	}
	if _, held := n.paths[e.path]; !held {
		return t.violation("detach of %q, not held by inode %d", e.path, n.id)
	}
	t.removePath(n, e.path)
	return nil
}

// rename moves a name between paths, preserving inode identity.
// Primary-path preference goes to the destination when the source
// was primary.
func (t *tracker) rename(e effect) error {
	if e.path == e.pathTo {
		return t.violation("rename %q onto itself", e.path)
	}
	n := t.at(e.path)
	wasPrimary := n.primary == e.path
	t.attach(n, e.pathTo, e.cmd)
	t.removePath(n, e.path)
	if wasPrimary {
		n.primary = e.pathTo
	}
	if IsTemporaryPath(e.path) && !n.created {
		t.diags.addf(stageTrack, "rename from temporary name %q with no recorded origin", e.path)
	}
	return nil
}

// markDirty flags content mutation and folds in the observed size:
// truncate carries the resulting size, extent-class commands extend
// the high-water mark.
func (t *tracker) markDirty(e effect) {
	n := t.at(e.path)
	n.dirty = true
	n.label(e.cmd)
	if !e.hasSize {
		return
	}
	switch {
	case e.exactSize:
		n.size, n.hasSize = e.size, true
	case !n.hasSize || e.size > n.size:
		n.size, n.hasSize = e.size, true
	}
}

// markMeta records a metadata-only touch; surfaced only when the
// caller opted into metadata changes and no stronger effect exists.
func (t *tracker) markMeta(e effect) {
	n := t.at(e.path)
	n.metaCmd = e.cmd
	n.hasMeta = true
}

// apply dispatches one classified effect into the model.
func (t *tracker) apply(e effect) error {
	switch e.op {
	case opAllocate:
		return t.allocate(e)
	case opAttach:
		src := t.at(e.linkTo)
		t.attach(src, e.path, e.cmd)
		src.label(e.cmd)
		return nil
	case opDetach:
		return t.detach(e)
	case opRename:
		return t.rename(e)
	case opDirty:
		t.markDirty(e)
		return nil
	case opMeta:
		t.markMeta(e)
		return nil
	default:
		return nil
	}
}

// resolveKind settles the kind of a pre-existing inode at aggregation
// time, consulting the NEW-snapshot oracle through its primary name.
func (t *tracker) resolveKind(n *inode) change.Kind {
	if n.kind != change.KindUnknown {
		return n.kind
	}
	if n.primary != "" {
		if k := t.lookupKind(n.primary); k != change.KindUnknown {
			n.kind = k
		}
	}
	return n.kind
}

func smallestPath(paths map[string]struct{}) string {
	best := ""
	for p := range paths {
		if best == "" || p < best {
			best = p
		}
	}
	return best
}

// sortedPaths returns the set as a lexicographically sorted slice.
func sortedPaths(paths map[string]struct{}) []string {
	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
