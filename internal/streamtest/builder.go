// Package streamtest builds synthetic send streams for tests. The
// builder produces byte-exact wire frames (magic, version, command
// headers with valid CRC-32C, TLV attributes) so decoder and parser
// tests exercise the real wire path instead of canned structs.
package streamtest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"btrfs-diff/internal/sendstream"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Attr is one TLV attribute to append to a command.
type Attr struct {
	Tag     sendstream.AttrTag
	Payload []byte
}

// U64 builds a little-endian unsigned integer attribute.
func U64(tag sendstream.AttrTag, v uint64) Attr {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return Attr{Tag: tag, Payload: buf[:]}
}

// Str builds a path/name attribute.
func Str(tag sendstream.AttrTag, s string) Attr {
	return Attr{Tag: tag, Payload: []byte(s)}
}

// Raw builds an attribute with arbitrary payload bytes.
func Raw(tag sendstream.AttrTag, b []byte) Attr {
	return Attr{Tag: tag, Payload: b}
}

// Builder accumulates a wire-format stream.
type Builder struct {
	buf bytes.Buffer
}

// New starts a stream with the envelope for the given version.
func New(version uint32) *Builder {
	b := &Builder{}
	b.buf.WriteString(sendstream.Magic)
	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], version)
	b.buf.Write(v[:])
	return b
}

// Cmd appends one command with a correct CRC.
func (b *Builder) Cmd(kind sendstream.CmdKind, attrs ...Attr) *Builder {
	var region bytes.Buffer
	for _, a := range attrs {
		var tl [4]byte
		binary.LittleEndian.PutUint16(tl[0:2], uint16(a.Tag))
		binary.LittleEndian.PutUint16(tl[2:4], uint16(len(a.Payload)))
		region.Write(tl[:])
		region.Write(a.Payload)
	}

	var hdr [10]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(region.Len()))
	binary.LittleEndian.PutUint16(hdr[4:6], uint16(kind))
	crc := crc32.Update(0, castagnoli, hdr[:])
	crc = crc32.Update(crc, castagnoli, region.Bytes())
	binary.LittleEndian.PutUint32(hdr[6:10], crc)

	b.buf.Write(hdr[:])
	b.buf.Write(region.Bytes())
	return b
}

// Mkfile appends a mkfile command for the path and inode.
func (b *Builder) Mkfile(path string, ino uint64) *Builder {
	return b.Cmd(sendstream.CmdMkfile, Str(sendstream.AttrPath, path), U64(sendstream.AttrIno, ino))
}

// Mkdir appends a mkdir command for the path and inode.
func (b *Builder) Mkdir(path string, ino uint64) *Builder {
	return b.Cmd(sendstream.CmdMkdir, Str(sendstream.AttrPath, path), U64(sendstream.AttrIno, ino))
}

// Symlink appends a symlink command.
func (b *Builder) Symlink(path string, ino uint64, target string) *Builder {
	return b.Cmd(sendstream.CmdSymlink,
		Str(sendstream.AttrPath, path),
		U64(sendstream.AttrIno, ino),
		Str(sendstream.AttrPathLink, target))
}

// Rename appends a rename command.
func (b *Builder) Rename(from, to string) *Builder {
	return b.Cmd(sendstream.CmdRename,
		Str(sendstream.AttrPath, from),
		Str(sendstream.AttrPathTo, to))
}

// Link appends a link command attaching path to the inode at existing.
func (b *Builder) Link(path, existing string) *Builder {
	return b.Cmd(sendstream.CmdLink,
		Str(sendstream.AttrPath, path),
		Str(sendstream.AttrPathLink, existing))
}

// Unlink appends an unlink command.
func (b *Builder) Unlink(path string) *Builder {
	return b.Cmd(sendstream.CmdUnlink, Str(sendstream.AttrPath, path))
}

// Rmdir appends an rmdir command.
func (b *Builder) Rmdir(path string) *Builder {
	return b.Cmd(sendstream.CmdRmdir, Str(sendstream.AttrPath, path))
}

// Write appends a write command with payload data at offset.
func (b *Builder) Write(path string, offset uint64, data []byte) *Builder {
	return b.Cmd(sendstream.CmdWrite,
		Str(sendstream.AttrPath, path),
		U64(sendstream.AttrFileOffset, offset),
		Raw(sendstream.AttrData, data))
}

// UpdateExtent appends an update_extent command (the --no-data stand-in
// for write).
func (b *Builder) UpdateExtent(path string, offset, size uint64) *Builder {
	return b.Cmd(sendstream.CmdUpdateExtent,
		Str(sendstream.AttrPath, path),
		U64(sendstream.AttrFileOffset, offset),
		U64(sendstream.AttrSize, size))
}

// Truncate appends a truncate command.
func (b *Builder) Truncate(path string, size uint64) *Builder {
	return b.Cmd(sendstream.CmdTruncate,
		Str(sendstream.AttrPath, path),
		U64(sendstream.AttrSize, size))
}

// End appends the terminator and returns the finished stream.
func (b *Builder) End() []byte {
	b.Cmd(sendstream.CmdEnd)
	return b.buf.Bytes()
}

// Bytes returns the stream without a terminator, for truncation
// tests.
func (b *Builder) Bytes() []byte {
	return b.buf.Bytes()
}
