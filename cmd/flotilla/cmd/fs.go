package cmd

import (
	"github.com/spf13/cobra"
)

// fsCmd groups the commands operating on one repository filesystem
var fsCmd = &cobra.Command{
	Use:   "fs",
	Short: "Commands to operate on repository files",
	Long: `Commands to operate on the files of one repository through the configured
storage backend. Paths are repository-relative; attempts to escape the
repository root are rejected.`,
}

func init() {
	addRepoNameFlag(fsCmd)
	rootCmd.AddCommand(fsCmd)
}
