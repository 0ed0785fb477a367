// Package main provides the btrfs-diff CLI: it parses the incremental
// send stream between two btrfs snapshots and reports the resulting
// file changes as JSON, a summary, or a table, with optional
// validation of the result against the live snapshot trees.
//
// Modes:
//   - diff          : btrfs-diff diff <old_snapshot> <new_snapshot>
//   - validate      : btrfs-diff validate <old_snapshot> <new_snapshot>
//   - comprehensive : btrfs-diff comprehensive <snapshot_root>
//
// Key design goals:
//   - Deterministic output (canonical change ordering, stable JSON)
//   - The parser consumes bytes; only this layer runs btrfs send
//   - Fail-open on oracle trouble: report, don't guess
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
