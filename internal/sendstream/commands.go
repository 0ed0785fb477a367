// Package sendstream decodes the btrfs send-stream wire format:
// a fixed envelope (magic + version) followed by length-prefixed
// commands, each carrying a TLV-encoded attribute region.
//
// Design goals:
//   - Single forward pass, O(1) auxiliary memory per command
//   - Decode by attribute tag only; unknown tags survive as raw bytes
//   - Optional CRC-32C verification, off by default
package sendstream

import "fmt"

// CmdKind is the 16-bit command type from the stream header.
// Numeric values are wire constants (btrfs send.h).
type CmdKind uint16

const (
	CmdUnspec CmdKind = iota
	CmdSubvol
	CmdSnapshot
	CmdMkfile
	CmdMkdir
	CmdMknod
	CmdMkfifo
	CmdMksock
	CmdSymlink
	CmdRename
	CmdLink
	CmdUnlink
	CmdRmdir
	CmdSetXattr
	CmdRemoveXattr
	CmdWrite
	CmdClone
	CmdTruncate
	CmdChmod
	CmdChown
	CmdUtimes
	CmdEnd
	CmdUpdateExtent

	cmdMax
)

var cmdNames = [...]string{
	CmdUnspec:       "unspec",
	CmdSubvol:       "subvol",
	CmdSnapshot:     "snapshot",
	CmdMkfile:       "mkfile",
	CmdMkdir:        "mkdir",
	CmdMknod:        "mknod",
	CmdMkfifo:       "mkfifo",
	CmdMksock:       "mksock",
	CmdSymlink:      "symlink",
	CmdRename:       "rename",
	CmdLink:         "link",
	CmdUnlink:       "unlink",
	CmdRmdir:        "rmdir",
	CmdSetXattr:     "set_xattr",
	CmdRemoveXattr:  "remove_xattr",
	CmdWrite:        "write",
	CmdClone:        "clone",
	CmdTruncate:     "truncate",
	CmdChmod:        "chmod",
	CmdChown:        "chown",
	CmdUtimes:       "utimes",
	CmdEnd:          "end",
	CmdUpdateExtent: "update_extent",
}

// Known reports whether the kind is inside the recognized command
// table.
func (c CmdKind) Known() bool { return c < cmdMax }

// String returns the short lowercase command name ("mkfile",
// "update_extent", ...), or a numeric placeholder for unknown kinds.
func (c CmdKind) String() string {
	if c.Known() {
		return cmdNames[c]
	}
	return fmt.Sprintf("cmd(%d)", uint16(c))
}

// MarshalText lets a CmdKind serialize as its name.
func (c CmdKind) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// AttrTag is the 16-bit attribute tag of a TLV triple.
// Numeric values are wire constants (btrfs send.h).
type AttrTag uint16

const (
	AttrUnspec AttrTag = iota
	AttrUUID
	AttrCtransid
	AttrIno
	AttrSize
	AttrMode
	AttrUID
	AttrGID
	AttrRdev
	AttrCtime
	AttrMtime
	AttrAtime
	AttrOtime
	AttrXattrName
	AttrXattrData
	AttrPath
	AttrPathTo
	AttrPathLink
	AttrFileOffset
	AttrData
	AttrCloneUUID
	AttrCloneCtransid
	AttrClonePath
	AttrCloneOffset
	AttrCloneLen

	attrMax
)

var attrNames = [...]string{
	AttrUnspec:        "unspec",
	AttrUUID:          "uuid",
	AttrCtransid:      "ctransid",
	AttrIno:           "ino",
	AttrSize:          "size",
	AttrMode:          "mode",
	AttrUID:           "uid",
	AttrGID:           "gid",
	AttrRdev:          "rdev",
	AttrCtime:         "ctime",
	AttrMtime:         "mtime",
	AttrAtime:         "atime",
	AttrOtime:         "otime",
	AttrXattrName:     "xattr_name",
	AttrXattrData:     "xattr_data",
	AttrPath:          "path",
	AttrPathTo:        "path_to",
	AttrPathLink:      "path_link",
	AttrFileOffset:    "file_offset",
	AttrData:          "data",
	AttrCloneUUID:     "clone_uuid",
	AttrCloneCtransid: "clone_ctransid",
	AttrClonePath:     "clone_path",
	AttrCloneOffset:   "clone_offset",
	AttrCloneLen:      "clone_len",
}

// String returns the attribute name, or a numeric placeholder for
// tags outside the table.
func (a AttrTag) String() string {
	if a < attrMax {
		return attrNames[a]
	}
	return fmt.Sprintf("attr(%d)", uint16(a))
}
