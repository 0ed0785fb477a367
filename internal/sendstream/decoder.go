package sendstream

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Magic is the 13-byte stream envelope prefix, including the
// terminating NUL.
const Magic = "btrfs-stream\x00"

const (
	envelopeLen = len(Magic) + 4 // magic + u32 version
	headerLen   = 10             // u32 length + u16 kind + u32 crc
	tlvLen      = 4              // u16 tag + u16 length
)

// DefaultVersions is the set of stream format versions the decoder
// accepts unless the caller overrides it.
var DefaultVersions = []uint32{1, 2}

// ErrBadMagic is returned when the envelope prefix is not the btrfs
// stream magic.
var ErrBadMagic = errors.New("not a btrfs send stream (bad magic)")

// ErrTruncated is returned when the buffer is too short for the
// envelope, or ends at a command boundary before the END command. A
// buffer that ends inside a command yields a MalformedCommandError.
var ErrTruncated = errors.New("truncated send stream")

// UnsupportedVersionError reports an envelope version outside the
// accepted set.
type UnsupportedVersionError struct {
	Got       uint32
	Supported []uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported stream version %d (supported: %v)", e.Got, e.Supported)
}

// CorruptCommandError reports a CRC-32C mismatch; raised only when
// verification is enabled.
type CorruptCommandError struct {
	Offset   int64
	Expected uint32
	Got      uint32
}

func (e *CorruptCommandError) Error() string {
	return fmt.Sprintf("corrupt command at offset %d: crc 0x%08x, stream says 0x%08x",
		e.Offset, e.Got, e.Expected)
}

// MalformedCommandError reports inconsistent framing inside one
// command (duplicate tags, TLV running past the region, ...).
type MalformedCommandError struct {
	Offset int64
	Reason string
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("malformed command at offset %d: %s", e.Offset, e.Reason)
}

// UnknownCommandError reports a kind code outside the command table.
// Surfaced as a hard error only in strict mode; the default policy is
// skip-and-diagnose at the parser layer.
type UnknownCommandError struct {
	Kind   CmdKind
	Offset int64
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %d at offset %d", uint16(e.Kind), e.Offset)
}

// castagnoli is the CRC-32C polynomial table used by the stream
// checksum.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Cmd is one decoded command: its kind, its attribute map, and the
// byte offset of its header (for error reporting).
type Cmd struct {
	Kind   CmdKind
	Attrs  Attrs
	Offset int64
}

// Options configures a Decoder.
type Options struct {
	// VerifyCRC enables CRC-32C verification of every command.
	VerifyCRC bool

	// SupportedVersions overrides DefaultVersions when non-empty.
	SupportedVersions []uint32
}

// Decoder walks a send-stream buffer command by command. It holds the
// caller's whole buffer, a cursor into it, and the envelope version.
// Attribute payloads are copied out, so returned commands never alias
// the buffer; the buffer itself is read again by every Next call and
// must stay unchanged until decoding ends.
type Decoder struct {
	data    []byte
	offset  int64
	version uint32
	done    bool
}

// NewDecoder validates the stream envelope and positions the cursor
// at the first command.
func NewDecoder(data []byte, opts Options) (*Decoder, error) {
	if len(data) < envelopeLen {
		return nil, ErrTruncated
	}
	if !bytes.Equal(data[:len(Magic)], []byte(Magic)) {
		return nil, ErrBadMagic
	}
	version := binary.LittleEndian.Uint32(data[len(Magic):envelopeLen])

	supported := opts.SupportedVersions
	if len(supported) == 0 {
		supported = DefaultVersions
	}
	ok := false
	for _, v := range supported {
		if v == version {
			ok = true
			break
		}
	}
	if !ok {
		return nil, &UnsupportedVersionError{Got: version, Supported: supported}
	}

	return &Decoder{data: data, offset: int64(envelopeLen), version: version}, nil
}

// Version reports the envelope version of the stream.
func (d *Decoder) Version() uint32 { return d.version }

// Next decodes the next command. It returns io.EOF after the END
// command; bytes past the terminator are ignored. The context is
// checked once per command boundary, never inside a command.
func (d *Decoder) Next(ctx context.Context, verifyCRC bool) (Cmd, error) {
	if d.done {
		return Cmd{}, io.EOF
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return Cmd{}, err
		}
	}

	start := d.offset
	rest := d.data[d.offset:]
	if len(rest) == 0 {
		return Cmd{}, ErrTruncated
	}
	if len(rest) < headerLen {
		return Cmd{}, &MalformedCommandError{Offset: start, Reason: "short header"}
	}

	length := binary.LittleEndian.Uint32(rest[0:4])
	kind := CmdKind(binary.LittleEndian.Uint16(rest[4:6]))
	wantCRC := binary.LittleEndian.Uint32(rest[6:10])

	if uint64(headerLen)+uint64(length) > uint64(len(rest)) {
		return Cmd{}, &MalformedCommandError{
			Offset: start,
			Reason: fmt.Sprintf("attribute region of %d bytes overruns stream", length),
		}
	}
	region := rest[headerLen : headerLen+int(length)]

	if verifyCRC {
		got := commandCRC(kind, region)
		if got != wantCRC {
			return Cmd{}, &CorruptCommandError{Offset: start, Expected: wantCRC, Got: got}
		}
	}

	attrs, err := decodeAttrs(region, start)
	if err != nil {
		return Cmd{}, err
	}

	d.offset = start + int64(headerLen) + int64(length)
	if kind == CmdEnd {
		d.done = true
	}
	return Cmd{Kind: kind, Attrs: attrs, Offset: start}, nil
}

// commandCRC computes the CRC-32C over the command header (with the
// crc field zeroed) plus the attribute region.
func commandCRC(kind CmdKind, region []byte) uint32 {
	var hdr [headerLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(region)))
	binary.LittleEndian.PutUint16(hdr[4:6], uint16(kind))
	// bytes 6..10 stay zero
	crc := crc32.Update(0, castagnoli, hdr[:])
	return crc32.Update(crc, castagnoli, region)
}

// decodeAttrs walks the TLV triples of one attribute region. Payloads
// are copied; duplicate tags within one command are malformed.
func decodeAttrs(region []byte, cmdOffset int64) (Attrs, error) {
	attrs := make(Attrs, 4)
	i := 0
	for i < len(region) {
		if len(region)-i < tlvLen {
			return nil, &MalformedCommandError{Offset: cmdOffset, Reason: "short TLV header"}
		}
		tag := AttrTag(binary.LittleEndian.Uint16(region[i : i+2]))
		l := int(binary.LittleEndian.Uint16(region[i+2 : i+4]))
		i += tlvLen
		if len(region)-i < l {
			return nil, &MalformedCommandError{
				Offset: cmdOffset,
				Reason: fmt.Sprintf("attribute %s payload of %d bytes overruns region", tag, l),
			}
		}
		if attrs.Has(tag) {
			return nil, &MalformedCommandError{
				Offset: cmdOffset,
				Reason: fmt.Sprintf("duplicate attribute %s", tag),
			}
		}
		payload := make([]byte, l)
		copy(payload, region[i:i+l])
		attrs[tag] = payload
		i += l
	}
	return attrs, nil
}
