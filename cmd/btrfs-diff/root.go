package main

import (
	log "github.com/fclairamb/go-log"
	"github.com/fclairamb/go-log/gokit"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	verboseFlag   = "verbose"
	sudoFlag      = "sudo"
	btrfsPathFlag = "btrfs-path"
	strictFlag    = "strict"
	verifyCRCFlag = "verify-crc"
)

var rootCmd = &cobra.Command{
	Use:   "btrfs-diff",
	Short: "Parse and analyze differences between btrfs snapshots",
	Long: `btrfs-diff computes the file changes between two btrfs snapshots by
parsing the filesystem's incremental send stream, without walking the
trees. Changes come out as modified/deleted/renamed records with
file-vs-directory classification and phantom-change suppression.`,
	SilenceUsage: true,
}

// Execute wires flags, environment, and subcommands, then runs the
// CLI.
func Execute() error {
	rootCmd.PersistentFlags().BoolP(verboseFlag, "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool(sudoFlag, false, "Invoke btrfs send through sudo")
	rootCmd.PersistentFlags().String(btrfsPathFlag, "btrfs", "Path to the btrfs binary")
	rootCmd.PersistentFlags().Bool(strictFlag, false, "Treat stream inconsistencies as hard errors")
	rootCmd.PersistentFlags().Bool(verifyCRCFlag, false, "Verify the CRC-32C of every stream command")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}
	viper.SetEnvPrefix("BTRFS_DIFF")
	viper.AutomaticEnv()

	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(comprehensiveCmd)
	rootCmd.AddCommand(versionCmd)
}

// logger returns the configured logger, or nil when quiet.
func logger() log.Logger {
	if !viper.GetBool(verboseFlag) {
		return nil
	}
	return gokit.New()
}
