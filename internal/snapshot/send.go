package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Source produces the incremental send stream for a snapshot pair by
// invoking the btrfs utility. The parser itself never runs
// subprocesses; this is the one place the stream bytes come from when
// the caller does not supply a file.
type Source struct {
	// BtrfsPath overrides the btrfs binary ("btrfs" on PATH by
	// default).
	BtrfsPath string

	// Sudo prefixes the invocation with sudo; reading a send stream
	// requires root on most systems.
	Sudo bool
}

// Stream runs `btrfs send --no-data -p <old> <new>` and returns its
// stdout. --no-data keeps file content out of the stream; the diff
// only needs the command log.
func (s Source) Stream(ctx context.Context, oldRoot, newRoot string) ([]byte, error) {
	bin := s.BtrfsPath
	if bin == "" {
		bin = "btrfs"
	}
	args := []string{bin, "send", "--no-data", "-p", oldRoot, newRoot}
	if s.Sudo {
		args = append([]string{"sudo"}, args...)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("btrfs send: %w", err)
		}
		return nil, fmt.Errorf("btrfs send: %w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}
