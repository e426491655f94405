package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/opensource-food/mizan/internal/corpus"
	"github.com/opensource-food/mizan/internal/engine"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Mizan %s\n", Version)
		fmt.Fprintf(out, "Engine: %s\n", engine.Version)
		fmt.Fprintf(out, "Corpus: %s\n", corpus.Version)
		fmt.Fprintf(out, "Commit: %s\n", Commit)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
