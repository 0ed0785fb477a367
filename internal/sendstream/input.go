package sendstream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression container magics. Send streams are routinely stored
// piped through a frame compressor; the reader sniffs these and
// decompresses transparently.
var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ReadStream reads a full send stream from r into memory, undoing
// one layer of zstd or lz4 frame compression when the input starts
// with the corresponding magic. Plain streams pass through.
func ReadStream(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd stream: %w", err)
		}
		defer zr.Close()
		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("zstd stream: %w", err)
		}
		return data, nil

	case bytes.HasPrefix(head, lz4Magic):
		data, err := io.ReadAll(lz4.NewReader(br))
		if err != nil {
			return nil, fmt.Errorf("lz4 stream: %w", err)
		}
		return data, nil

	default:
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}
		return data, nil
	}
}
