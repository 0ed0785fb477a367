package delta

import (
	"context"
	"fmt"
	"sort"

	log "github.com/fclairamb/go-log"

	"btrfs-diff/internal/change"
	"btrfs-diff/internal/sendstream"
	"btrfs-diff/internal/sortutil"
)

// Oracle answers the two snapshot-existence questions the phantom
// filter needs plus the kind lookup the tracker uses for inodes the
// stream references but never creates. Implementations are expected
// to be O(1) per path (lstat or a cached scan). A nil Oracle disables
// filtering and kind resolution.
type Oracle interface {
	// OldExists reports whether the path is present in the OLD
	// snapshot tree.
	OldExists(path string) (bool, error)

	// NewExists reports whether the path is present in the NEW
	// snapshot tree.
	NewExists(path string) (bool, error)

	// NewKind resolves the kind of a path in the NEW snapshot.
	NewKind(path string) (change.Kind, error)
}

// Options is the parse configuration.
type Options struct {
	// VerifyCRC enables CRC-32C verification of every command.
	VerifyCRC bool

	// SupportedVersions overrides the accepted envelope versions
	// (default 1 and 2).
	SupportedVersions []uint32

	// EmitMetadataOnly surfaces inodes whose only changes were
	// chmod/chown/utimes/xattr as modified records.
	EmitMetadataOnly bool

	// Strict turns unknown commands and tracker invariant violations
	// into hard errors instead of diagnostics.
	Strict bool

	// Logger receives debug traces of the parse. Nil is quiet.
	Logger log.Logger
}

// Result is a successful parse: the canonical change list plus the
// soft errors collected along the way.
type Result struct {
	Changes     []change.FileChange
	Diagnostics []Diagnostic

	// Version is the stream envelope version.
	Version uint32

	// Root is the subvolume path from the stream's subvol/snapshot
	// header command, when present.
	Root string

	// Commands is the number of commands decoded, END included.
	Commands int
}

// Parse decodes a send stream and reduces it to the canonical set of
// file changes between the two snapshots the stream connects. It is a
// pure function of (data, oracle, options); the oracle is the only
// place the filesystem is consulted. Hard errors abort with no
// partial output; ctx is honored at command boundaries.
func Parse(ctx context.Context, data []byte, oracle Oracle, opts Options) (*Result, error) {
	dec, err := sendstream.NewDecoder(data, sendstream.Options{
		SupportedVersions: opts.SupportedVersions,
	})
	if err != nil {
		return nil, err
	}

	diags := &diagnostics{}
	trk := newTracker(oracle, opts.Strict, diags)
	commands := 0
	root := ""
	counts := make(map[string]int)

	for {
		cmd, err := dec.Next(ctx, opts.VerifyCRC)
		if err != nil {
			return nil, err
		}
		commands++
		counts[cmd.Kind.String()]++

		if cmd.Kind == sendstream.CmdEnd {
			break
		}
		if !cmd.Kind.Known() {
			if opts.Strict {
				return nil, &sendstream.UnknownCommandError{Kind: cmd.Kind, Offset: cmd.Offset}
			}
			diags.addf(stageDecode, "skipped unknown command %d at offset %d", uint16(cmd.Kind), cmd.Offset)
			continue
		}

		eff, err := classify(cmd)
		if err != nil {
			if opts.Strict {
				return nil, fmt.Errorf("command at offset %d: %w", cmd.Offset, err)
			}
			diags.addf(stageDecode, "skipped command at offset %d: %v", cmd.Offset, err)
			continue
		}
		if eff.op == opRoot && eff.path != "" {
			root = eff.path
		}
		if err := trk.apply(eff); err != nil {
			return nil, err
		}
	}

	if opts.Logger != nil {
		opts.Logger.Debug("stream decoded",
			"version", dec.Version(),
			"commands", commands,
			"inodes", len(trk.inodes),
		)
	}

	changes := aggregate(trk, opts.EmitMetadataOnly)
	changes = filterPhantoms(changes, oracle, diags)
	// Reclassification inside the filter can disturb the canonical
	// (path, action) order.
	sortutil.Changes(changes)

	if opts.Logger != nil {
		opts.Logger.Debug("changes aggregated",
			"changes", len(changes),
			"diagnostics", len(diags.list),
		)
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			opts.Logger.Debug("command count", "command", name, "count", counts[name])
		}
	}

	return &Result{
		Changes:     changes,
		Diagnostics: diags.list,
		Version:     dec.Version(),
		Root:        root,
		Commands:    commands,
	}, nil
}
