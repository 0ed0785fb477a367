// Package delta turns a decoded send stream into the canonical list
// of file changes between two snapshots. It tracks every inode the
// stream touches through arbitrary rename/link chains, collapses the
// raw command log into one record per logical outcome, and filters
// out phantom records the stream implies but the snapshots disprove.
package delta

import (
	"fmt"

	"btrfs-diff/internal/change"
	"btrfs-diff/internal/sendstream"
)

// effectOp is the small internal vocabulary the tracker understands.
// Every recognized stream command maps onto exactly one of these.
type effectOp uint8

const (
	opNone effectOp = iota
	opRoot           // subvol / snapshot: stream root identity
	opAllocate       // mkfile/mkdir/mknod/mkfifo/mksock/symlink
	opAttach         // link: new name for an existing inode
	opDetach         // unlink / rmdir
	opRename         // rename: move a name, keep inode identity
	opDirty          // write/clone/truncate/update_extent
	opMeta           // chmod/chown/utimes/set_xattr/remove_xattr
	opEnd
)

// effect is one classified command: the operation the tracker should
// apply plus the decoded operands it needs. The originating command
// kind rides along so the aggregator can pick the best-describing
// label for the net change.
type effect struct {
	op   effectOp
	cmd  sendstream.CmdKind
	kind change.Kind

	path   string
	pathTo string // rename destination
	linkTo string // link: existing path the new name points at
	target string // symlink target

	ino    uint64
	hasIno bool

	size      uint64
	hasSize   bool
	exactSize bool // truncate carries the resulting size, not an extent end
}

// commandPriority ranks command kinds for the details.command label:
// symlink > mkfile/mkdir/mknod-family > update_extent > truncate >
// write/clone > metadata.
func commandPriority(c sendstream.CmdKind) int {
	switch c {
	case sendstream.CmdSymlink:
		return 60
	case sendstream.CmdMkfile, sendstream.CmdMkdir, sendstream.CmdMknod,
		sendstream.CmdMkfifo, sendstream.CmdMksock:
		return 50
	case sendstream.CmdUpdateExtent:
		return 40
	case sendstream.CmdTruncate:
		return 30
	case sendstream.CmdWrite, sendstream.CmdClone:
		return 20
	case sendstream.CmdChmod, sendstream.CmdChown, sendstream.CmdUtimes,
		sendstream.CmdSetXattr, sendstream.CmdRemoveXattr:
		return 10
	default:
		return 0
	}
}

// createKind maps a create-class command to the inode kind it
// establishes.
func createKind(c sendstream.CmdKind) change.Kind {
	switch c {
	case sendstream.CmdMkfile:
		return change.KindRegular
	case sendstream.CmdMkdir:
		return change.KindDirectory
	case sendstream.CmdSymlink:
		return change.KindSymlink
	case sendstream.CmdMknod, sendstream.CmdMkfifo, sendstream.CmdMksock:
		return change.KindSpecial
	default:
		return change.KindUnknown
	}
}

// classify maps one decoded command onto its tracker effect. Commands
// with no model impact (subvol headers, metadata when not surfaced)
// still classify so the caller can account for them.
func classify(c sendstream.Cmd) (effect, error) {
	e := effect{cmd: c.Kind}

	path := func() (string, error) { return c.Attrs.String(sendstream.AttrPath) }

	switch c.Kind {
	case sendstream.CmdSubvol, sendstream.CmdSnapshot:
		e.op = opRoot
		if p, err := path(); err == nil {
			e.path = p
		}
		return e, nil

	case sendstream.CmdMkfile, sendstream.CmdMkdir, sendstream.CmdMknod,
		sendstream.CmdMkfifo, sendstream.CmdMksock:
		p, err := path()
		if err != nil {
			return e, fmt.Errorf("%s: %w", c.Kind, err)
		}
		e.op = opAllocate
		e.path = p
		e.kind = createKind(c.Kind)
		if ino, err := c.Attrs.U64(sendstream.AttrIno); err == nil {
			e.ino, e.hasIno = ino, true
		}
		return e, nil

	case sendstream.CmdSymlink:
		p, err := path()
		if err != nil {
			return e, fmt.Errorf("symlink: %w", err)
		}
		target, err := c.Attrs.String(sendstream.AttrPathLink)
		if err != nil {
			return e, fmt.Errorf("symlink: %w", err)
		}
		e.op = opAllocate
		e.path = p
		e.kind = change.KindSymlink
		e.target = target
		if ino, err := c.Attrs.U64(sendstream.AttrIno); err == nil {
			e.ino, e.hasIno = ino, true
		}
		return e, nil

	case sendstream.CmdLink:
		p, err := path()
		if err != nil {
			return e, fmt.Errorf("link: %w", err)
		}
		existing, err := c.Attrs.String(sendstream.AttrPathLink)
		if err != nil {
			return e, fmt.Errorf("link: %w", err)
		}
		e.op = opAttach
		e.path = p
		e.linkTo = existing
		return e, nil

	case sendstream.CmdUnlink, sendstream.CmdRmdir:
		p, err := path()
		if err != nil {
			return e, fmt.Errorf("%s: %w", c.Kind, err)
		}
		e.op = opDetach
		e.path = p
		if c.Kind == sendstream.CmdRmdir {
			e.kind = change.KindDirectory
		}
		return e, nil

	case sendstream.CmdRename:
		from, err := path()
		if err != nil {
			return e, fmt.Errorf("rename: %w", err)
		}
		to, err := c.Attrs.String(sendstream.AttrPathTo)
		if err != nil {
			return e, fmt.Errorf("rename: %w", err)
		}
		e.op = opRename
		e.path = from
		e.pathTo = to
		return e, nil

	case sendstream.CmdWrite:
		p, err := path()
		if err != nil {
			return e, fmt.Errorf("write: %w", err)
		}
		e.op = opDirty
		e.path = p
		if off, err := c.Attrs.U64(sendstream.AttrFileOffset); err == nil {
			e.size = off + uint64(len(c.Attrs.Bytes(sendstream.AttrData)))
			e.hasSize = true
		}
		return e, nil

	case sendstream.CmdUpdateExtent:
		p, err := path()
		if err != nil {
			return e, fmt.Errorf("update_extent: %w", err)
		}
		e.op = opDirty
		e.path = p
		off, offErr := c.Attrs.U64(sendstream.AttrFileOffset)
		size, sizeErr := c.Attrs.U64(sendstream.AttrSize)
		if offErr == nil && sizeErr == nil {
			e.size = off + size
			e.hasSize = true
		}
		return e, nil

	case sendstream.CmdClone:
		p, err := path()
		if err != nil {
			return e, fmt.Errorf("clone: %w", err)
		}
		e.op = opDirty
		e.path = p
		off, offErr := c.Attrs.U64(sendstream.AttrFileOffset)
		length, lenErr := c.Attrs.U64(sendstream.AttrCloneLen)
		if offErr == nil && lenErr == nil {
			e.size = off + length
			e.hasSize = true
		}
		return e, nil

	case sendstream.CmdTruncate:
		p, err := path()
		if err != nil {
			return e, fmt.Errorf("truncate: %w", err)
		}
		e.op = opDirty
		e.path = p
		if size, err := c.Attrs.U64(sendstream.AttrSize); err == nil {
			e.size = size
			e.hasSize = true
			e.exactSize = true
		}
		return e, nil

	case sendstream.CmdChmod, sendstream.CmdChown, sendstream.CmdUtimes,
		sendstream.CmdSetXattr, sendstream.CmdRemoveXattr:
		p, err := path()
		if err != nil {
			return e, fmt.Errorf("%s: %w", c.Kind, err)
		}
		e.op = opMeta
		e.path = p
		return e, nil

	case sendstream.CmdEnd:
		e.op = opEnd
		return e, nil

	default:
		e.op = opNone
		return e, nil
	}
}
