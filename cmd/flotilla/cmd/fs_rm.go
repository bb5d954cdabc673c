package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
)

var rmRecursive bool

var fsRm = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a repository file or directory",
	Long: `Remove one repository file or symbolic link. With --recursive the path is
removed as a directory instead.`,
	Example: `% flotilla fs rm --repo myproject refs/heads/stale
% flotilla fs rm --repo myproject --recursive refs/heads`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		fs, _, err := buildFS(ctx, flotillaFlags.repo)
		if err != nil {
			wrapFatalln("wire storage backend", err)
			return
		}
		if rmRecursive {
			err = fs.Rmdir(ctx, args[0])
		} else {
			err = fs.Unlink(ctx, args[0])
		}
		if err != nil {
			if repofs.IsPathTraversal(err) {
				wrapFatalWithCodef(2, "invalid path")
				return
			}
			wrapFatalln("remove", err)
			return
		}
	},
}

func init() {
	fsRm.Flags().BoolVar(&rmRecursive, "recursive", false, "Remove the path as a directory")
	fsCmd.AddCommand(fsRm)
}
