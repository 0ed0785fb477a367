package delta

import (
	"btrfs-diff/internal/change"
	"btrfs-diff/internal/sendstream"
)

// filterPhantoms drops records that are artifacts of the stream
// rather than real user-visible changes, consulting the snapshot
// oracles:
//
//   - a deleted record whose path never existed in OLD is a phantom
//     deletion;
//   - a modified symlink record whose path does not exist in NEW is
//     first reclassified as deleted, then subject to the same OLD
//     check.
//
// Oracle failures keep the record (fail-open).
func filterPhantoms(changes []change.FileChange, oracle Oracle, diags *diagnostics) []change.FileChange {
	if oracle == nil {
		return changes
	}

	out := changes[:0]
	for _, fc := range changes {
		switch {
		case fc.Action == change.ActionDeleted:
			if phantomDeletion(fc.Path, oracle) {
				diags.addf(stageFilter, "dropped phantom deletion of %q", fc.Path)
				continue
			}

		case fc.Action == change.ActionModified && fc.Details.Command == sendstream.CmdSymlink.String():
			exists, err := oracle.NewExists(fc.Path)
			if err == nil && !exists {
				if phantomDeletion(fc.Path, oracle) {
					diags.addf(stageFilter, "dropped phantom symlink %q (in neither snapshot)", fc.Path)
					continue
				}
				diags.addf(stageFilter, "reclassified symlink %q as deleted (absent from NEW)", fc.Path)
				fc.Action = change.ActionDeleted
				// Deleted records carry unlink/rmdir, never a
				// create-class command; a symlink is never a
				// directory.
				fc.Details.Command = sendstream.CmdUnlink.String()
				fc.Details.PathLink = ""
				fc.Details.Size = nil
			}
		}
		out = append(out, fc)
	}
	return out
}

// phantomDeletion reports whether the path verifiably never existed
// in the OLD snapshot. Unanswerable lookups count as real.
func phantomDeletion(path string, oracle Oracle) bool {
	exists, err := oracle.OldExists(path)
	return err == nil && !exists
}
