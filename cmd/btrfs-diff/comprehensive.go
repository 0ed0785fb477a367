package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"btrfs-diff/internal/report"
	"btrfs-diff/internal/snapshot"
)

var (
	comprehensivePattern string
	comprehensiveSample  int
)

var comprehensiveCmd = &cobra.Command{
	Use:   "comprehensive <snapshot_root>",
	Short: "Run validation across every consecutive snapshot pair",
	Long: `comprehensive discovers the snapshots under <snapshot_root> whose
names match the pattern, orders them by name (timestamped snapshot
names sort into temporal order), and validates the diff of every
consecutive pair.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		names, err := snapshot.Discover(root, comprehensivePattern)
		if err != nil {
			return err
		}
		if len(names) < 2 {
			return fmt.Errorf("need at least 2 snapshots matching %q under %s", comprehensivePattern, root)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Found %d snapshots, validating %d pairs (sample %d)\n\n",
			len(names), len(names)-1, comprehensiveSample)

		for i := 0; i+1 < len(names); i++ {
			oldRoot := filepath.Join(root, names[i])
			newRoot := filepath.Join(root, names[i+1])

			result, pair, err := parsePair(cmd, oldRoot, newRoot, "", false)
			if err != nil {
				return fmt.Errorf("%s -> %s: %w", names[i], names[i+1], err)
			}
			set := runValidation(result.Changes, pair, comprehensiveSample)
			report.WritePairLine(cmd.OutOrStdout(), names[i], names[i+1], set)
		}
		return nil
	},
}

func init() {
	comprehensiveCmd.Flags().StringVarP(&comprehensivePattern, "pattern", "p", "", "Snapshot name pattern to match (prefix up to '*')")
	comprehensiveCmd.Flags().IntVarP(&comprehensiveSample, "sample", "s", 1000, "Sample size for validation")
}
