package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"btrfs-diff/internal/change"
	"btrfs-diff/internal/report"
	"btrfs-diff/internal/snapshot"
	"btrfs-diff/internal/validate"
)

var (
	validateSample   int
	validateStream   string
	validateTreeDiff bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <old_snapshot> <new_snapshot>",
	Short: "Validate diff results against actual filesystem changes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, pair, err := parsePair(cmd, args[0], args[1], validateStream, false)
		if err != nil {
			return err
		}

		if err := validate.Changes(result.Changes); err != nil {
			return err
		}

		set := runValidation(result.Changes, pair, validateSample)
		report.WriteValidation(cmd.OutOrStdout(), set)

		if validateTreeDiff {
			ok, diff, err := validate.RoundTrip(result.Changes, pair)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "\nRound-trip: OK (old + changes == new)")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "\nRound-trip mismatch:\n%s", diff)
			}
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().IntVarP(&validateSample, "sample", "s", 10, "Number of items to validate per type")
	validateCmd.Flags().StringVar(&validateStream, "stream", "", "Read the send stream from a file instead of running btrfs send")
	validateCmd.Flags().BoolVar(&validateTreeDiff, "tree-diff", false, "Also scan both trees and round-trip the change list")
}

// runValidation splits the change list by type and runs the sampled
// checks. The mtime window comes from the snapshot names when they
// carry timestamps.
func runValidation(changes []change.FileChange, pair *snapshot.Pair, sample int) report.ValidationSet {
	var symlinks, deletions, modifications []change.FileChange
	for _, fc := range changes {
		switch {
		case fc.Details.Command == "symlink" && fc.Action == change.ActionModified:
			symlinks = append(symlinks, fc)
		case fc.Action == change.ActionDeleted:
			deletions = append(deletions, fc)
		case fc.Action == change.ActionModified:
			modifications = append(modifications, fc)
		}
	}

	var windowStart, windowEnd time.Time
	if start, err := snapshot.ParseTime(filepath.Base(pair.Old.Root())); err == nil {
		if end, err := snapshot.ParseTime(filepath.Base(pair.New.Root())); err == nil {
			windowStart, windowEnd = start, end
		}
	}

	set := report.ValidationSet{Total: len(changes)}
	if len(symlinks) > 0 {
		r := validate.Symlinks(symlinks, pair.New, sample)
		set.Symlinks = &r
	}
	if len(deletions) > 0 {
		r := validate.Deletions(deletions, pair, sample)
		set.Deletions = &r
	}
	if len(modifications) > 0 {
		r := validate.Modifications(modifications, pair.New, windowStart, windowEnd, sample)
		set.Modifications = &r
	}
	return set
}
