package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"btrfs-diff/internal/delta"
	"btrfs-diff/internal/report"
	"btrfs-diff/internal/sendstream"
	"btrfs-diff/internal/snapshot"
)

var (
	diffFormat   string
	diffStream   string
	diffMetadata bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <old_snapshot> <new_snapshot>",
	Short: "Get differences between two btrfs snapshots",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, _, err := parsePair(cmd, args[0], args[1], diffStream, diffMetadata)
		if err != nil {
			return err
		}

		for _, d := range result.Diagnostics {
			fmt.Fprintf(cmd.ErrOrStderr(), "diagnostic: %s\n", d)
		}

		switch diffFormat {
		case "json":
			return report.WriteJSON(cmd.OutOrStdout(), result.Changes)
		case "summary":
			return report.WriteSummary(cmd.OutOrStdout(), result.Changes)
		case "table":
			return report.WriteTable(cmd.OutOrStdout(), result.Changes)
		default:
			return fmt.Errorf("unknown format: %s", diffFormat)
		}
	},
}

func init() {
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "json", "Output format: json, summary, table")
	diffCmd.Flags().StringVar(&diffStream, "stream", "", "Read the send stream from a file ('-' for stdin) instead of running btrfs send; zstd and lz4 frames are detected")
	diffCmd.Flags().BoolVar(&diffMetadata, "emit-metadata", false, "Surface metadata-only changes (chmod/chown/utimes/xattr)")
}

// parsePair loads the send stream for a snapshot pair and parses it
// with the pair as oracle.
func parsePair(cmd *cobra.Command, oldRoot, newRoot, streamFile string, emitMetadata bool) (*delta.Result, *snapshot.Pair, error) {
	pair, err := snapshot.NewPair(oldRoot, newRoot)
	if err != nil {
		return nil, nil, err
	}

	var data []byte
	switch {
	case streamFile == "-":
		data, err = sendstream.ReadStream(os.Stdin)
	case streamFile != "":
		f, openErr := os.Open(streamFile)
		if openErr != nil {
			return nil, nil, openErr
		}
		defer f.Close()
		data, err = sendstream.ReadStream(f)
	default:
		source := snapshot.Source{
			BtrfsPath: viper.GetString(btrfsPathFlag),
			Sudo:      viper.GetBool(sudoFlag),
		}
		data, err = source.Stream(cmd.Context(), oldRoot, newRoot)
	}
	if err != nil {
		return nil, nil, err
	}

	result, err := delta.Parse(cmd.Context(), data, pair, delta.Options{
		VerifyCRC:        viper.GetBool(verifyCRCFlag),
		Strict:           viper.GetBool(strictFlag),
		EmitMetadataOnly: emitMetadata,
		Logger:           logger(),
	})
	if err != nil {
		return nil, nil, err
	}
	return result, pair, nil
}
