package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fermata-audio/scorefollow/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "scorefollow",
	Short: "Score following and intonation analysis tools",
	Long: `Tools around the online score-following engine: offline alignment of a
performance recording against a reference, simulated live following, and
per-note intonation reports.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logging.SetLevel(logging.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
