package sendstream_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"btrfs-diff/internal/sendstream"
	"btrfs-diff/internal/streamtest"
)

func drain(t *testing.T, data []byte, verifyCRC bool) []sendstream.Cmd {
	t.Helper()
	dec, err := sendstream.NewDecoder(data, sendstream.Options{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	var cmds []sendstream.Cmd
	for {
		cmd, err := dec.Next(context.Background(), verifyCRC)
		if err == io.EOF {
			return cmds
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		cmds = append(cmds, cmd)
	}
}

func TestDecodeEnvelopeAndCommands(t *testing.T) {
	data := streamtest.New(1).
		Mkfile("a", 10).
		Truncate("a", 4).
		End()

	dec, err := sendstream.NewDecoder(data, sendstream.Options{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if dec.Version() != 1 {
		t.Fatalf("version got %d, want 1", dec.Version())
	}

	cmds := drain(t, data, true)
	if len(cmds) != 3 {
		t.Fatalf("decoded %d commands, want 3", len(cmds))
	}
	if cmds[0].Kind != sendstream.CmdMkfile {
		t.Fatalf("first command %s, want mkfile", cmds[0].Kind)
	}
	path, err := cmds[0].Attrs.String(sendstream.AttrPath)
	if err != nil || path != "a" {
		t.Fatalf("path got %q (%v), want \"a\"", path, err)
	}
	ino, err := cmds[0].Attrs.U64(sendstream.AttrIno)
	if err != nil || ino != 10 {
		t.Fatalf("ino got %d (%v), want 10", ino, err)
	}
	size, err := cmds[1].Attrs.U64(sendstream.AttrSize)
	if err != nil || size != 4 {
		t.Fatalf("size got %d (%v), want 4", size, err)
	}
	if cmds[2].Kind != sendstream.CmdEnd {
		t.Fatalf("last command %s, want end", cmds[2].Kind)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	data := []byte("btrfs-dreams\x00\x01\x00\x00\x00 trailing")
	if _, err := sendstream.NewDecoder(data, sendstream.Options{}); !errors.Is(err, sendstream.ErrBadMagic) {
		t.Fatalf("err %v, want ErrBadMagic", err)
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	data := streamtest.New(7).End()
	_, err := sendstream.NewDecoder(data, sendstream.Options{})
	var uv *sendstream.UnsupportedVersionError
	if !errors.As(err, &uv) {
		t.Fatalf("err %v, want UnsupportedVersionError", err)
	}
	if uv.Got != 7 {
		t.Fatalf("got version %d, want 7", uv.Got)
	}

	// The same stream decodes when the caller widens the accepted set.
	if _, err := sendstream.NewDecoder(data, sendstream.Options{SupportedVersions: []uint32{7}}); err != nil {
		t.Fatalf("widened set: %v", err)
	}
}

func TestDecodeVersion2(t *testing.T) {
	data := streamtest.New(2).Mkdir("d", 11).End()
	cmds := drain(t, data, true)
	if len(cmds) != 2 || cmds[0].Kind != sendstream.CmdMkdir {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
}

func TestDecodeCorruptCRC(t *testing.T) {
	data := streamtest.New(1).Mkfile("a", 10).End()
	// Flip one payload byte after the first command header.
	data[len(sendstream.Magic)+4+10] ^= 0xff

	dec, err := sendstream.NewDecoder(data, sendstream.Options{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	_, err = dec.Next(context.Background(), true)
	var cc *sendstream.CorruptCommandError
	if !errors.As(err, &cc) {
		t.Fatalf("err %v, want CorruptCommandError", err)
	}

	// Without verification the same stream decodes.
	dec, err = sendstream.NewDecoder(data, sendstream.Options{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.Next(context.Background(), false); err != nil {
		t.Fatalf("unverified Next: %v", err)
	}
}

func TestDecodeTruncatedStream(t *testing.T) {
	data := streamtest.New(1).Mkfile("a", 10).Bytes() // no END
	dec, err := sendstream.NewDecoder(data, sendstream.Options{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.Next(context.Background(), false); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if _, err := dec.Next(context.Background(), false); !errors.Is(err, sendstream.ErrTruncated) {
		t.Fatalf("err %v, want ErrTruncated", err)
	}
}

func TestDecodeBytesAfterEndIgnored(t *testing.T) {
	data := streamtest.New(1).End()
	data = append(data, 0xde, 0xad, 0xbe, 0xef)
	cmds := drain(t, data, true)
	if len(cmds) != 1 || cmds[0].Kind != sendstream.CmdEnd {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
}

func TestDecodeDuplicateAttrMalformed(t *testing.T) {
	data := streamtest.New(1).
		Cmd(sendstream.CmdMkfile,
			streamtest.Str(sendstream.AttrPath, "a"),
			streamtest.Str(sendstream.AttrPath, "b")).
		End()
	dec, err := sendstream.NewDecoder(data, sendstream.Options{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	_, err = dec.Next(context.Background(), false)
	var mc *sendstream.MalformedCommandError
	if !errors.As(err, &mc) {
		t.Fatalf("err %v, want MalformedCommandError", err)
	}
}

func TestDecodeUnknownTagPreserved(t *testing.T) {
	const futureTag = sendstream.AttrTag(90)
	data := streamtest.New(1).
		Cmd(sendstream.CmdMkfile,
			streamtest.Str(sendstream.AttrPath, "a"),
			streamtest.Raw(futureTag, []byte{1, 2, 3})).
		End()
	cmds := drain(t, data, true)
	raw := cmds[0].Attrs.Bytes(futureTag)
	if len(raw) != 3 || raw[0] != 1 {
		t.Fatalf("unknown tag payload %v, want [1 2 3]", raw)
	}
}

func TestDecodeCancellation(t *testing.T) {
	data := streamtest.New(1).Mkfile("a", 10).End()
	dec, err := sendstream.NewDecoder(data, sendstream.Options{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dec.Next(ctx, false); !errors.Is(err, context.Canceled) {
		t.Fatalf("err %v, want context.Canceled", err)
	}
}
