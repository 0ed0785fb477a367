package delta

import (
	"sort"

	"btrfs-diff/internal/change"
	"btrfs-diff/internal/sendstream"
	"btrfs-diff/internal/sortutil"
)

// aggregate walks every tracked inode exactly once and emits at most
// one FileChange per logical outcome:
//
//  1. pre-existing inode, all names gone      -> deleted (per initial name)
//  2. created in stream, all names gone       -> nothing (net no-op)
//  3. created in stream, still named          -> modified at primary
//  4. pre-existing, content touched           -> modified at primary
//  5. pre-existing, clean, name set changed   -> renamed (paired), with
//     unpaired detaches as deleted and unpaired attaches as modified
//  6. metadata only                           -> nothing unless opted in
func aggregate(t *tracker, emitMetadataOnly bool) []change.FileChange {
	var out []change.FileChange

	for _, id := range t.order {
		n := t.inodes[id]
		kind := t.resolveKind(n)

		switch {
		case n.deleted() && !n.created:
			for _, p := range sortedPaths(n.initial) {
				out = append(out, deletion(n, kind, p))
			}

		case n.deleted() && n.created:
			// Created and destroyed within one delta: invisible.

		case n.created:
			if IsTemporaryPath(n.primary) {
				// Never renamed into place; nothing user-visible to
				// report.
				t.diags.addf(stageTrack, "suppressed change at temporary name %q", n.primary)
				continue
			}
			out = append(out, modification(n, kind, n.primary))

		case n.dirty:
			if IsTemporaryPath(n.primary) {
				t.diags.addf(stageTrack, "suppressed change at temporary name %q", n.primary)
				continue
			}
			out = append(out, modification(n, kind, n.primary))

		case !pathSetsEqual(n.paths, n.initial):
			out = append(out, renames(n, kind)...)

		case n.hasMeta && emitMetadataOnly:
			fc := modification(n, kind, n.primary)
			fc.Details.Command = n.metaCmd.String()
			fc.Details.Size = nil
			out = append(out, fc)
		}
	}

	sortutil.Changes(out)
	return out
}

// renames pairs the names the inode lost with the names it gained, in
// lexicographic order. Leftover losses surface as deletions, leftover
// gains as modifications; hard-link reshuffles therefore reduce to a
// canonical form rather than the stream's literal move order.
func renames(n *inode, kind change.Kind) []change.FileChange {
	lost := setDifference(n.initial, n.paths)
	gained := setDifference(n.paths, n.initial)

	var out []change.FileChange
	pairs := len(lost)
	if len(gained) < pairs {
		pairs = len(gained)
	}
	for i := 0; i < pairs; i++ {
		fc := change.FileChange{
			Path:   lost[i],
			Action: change.ActionRenamed,
			Details: change.Details{
				Command:     sendstream.CmdRename.String(),
				PathTo:      gained[i],
				IsDirectory: isDirectory(n, kind),
			},
		}
		setInode(&fc, n)
		out = append(out, fc)
	}
	for _, p := range lost[pairs:] {
		out = append(out, deletion(n, kind, p))
	}
	for _, p := range gained[pairs:] {
		fc := modification(n, kind, p)
		if by, ok := n.attachedBy[p]; ok {
			fc.Details.Command = by.String()
		}
		out = append(out, fc)
	}
	return out
}

// deletion builds a deleted record for one lost name. rmdir for
// directories, unlink otherwise.
func deletion(n *inode, kind change.Kind, path string) change.FileChange {
	cmd := sendstream.CmdUnlink
	if kind == change.KindDirectory {
		cmd = sendstream.CmdRmdir
	}
	fc := change.FileChange{
		Path:   path,
		Action: change.ActionDeleted,
		Details: change.Details{
			Command:     cmd.String(),
			IsDirectory: isDirectory(n, kind),
		},
	}
	setInode(&fc, n)
	return fc
}

// modification builds a modified record at the given name, labeled by
// the highest-priority command observed for the inode.
func modification(n *inode, kind change.Kind, path string) change.FileChange {
	cmd := n.cmd
	if n.cmdPri == 0 {
		// No content or create label; default to write.
		cmd = sendstream.CmdWrite
	}
	fc := change.FileChange{
		Path:   path,
		Action: change.ActionModified,
		Details: change.Details{
			Command:     cmd.String(),
			IsDirectory: isDirectory(n, kind),
		},
	}
	if n.hasSize {
		size := n.size
		fc.Details.Size = &size
	}
	if cmd == sendstream.CmdSymlink {
		fc.Details.PathLink = n.target
	}
	setInode(&fc, n)
	return fc
}

// isDirectory resolves the tri-valued output field: a known kind
// decides it, an unlink-only history rules out "directory", anything
// else stays unknown.
func isDirectory(n *inode, kind change.Kind) *bool {
	if d := kind.IsDirectory(); d != nil {
		return d
	}
	if n.noDirHint {
		v := false
		return &v
	}
	return nil
}

func setInode(fc *change.FileChange, n *inode) {
	if n.hasWireIno {
		ino := n.wireIno
		fc.Details.Inode = &ino
	}
}

func pathSetsEqual(a, b map[string]struct{}) bool {
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

// setDifference returns a \ b, sorted.
func setDifference(a, b map[string]struct{}) []string {
	var out []string
	for p := range a {
		if _, ok := b[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
