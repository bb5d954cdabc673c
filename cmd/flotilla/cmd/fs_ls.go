package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
)

var fsLs = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory of the repository",
	Long: `List the entries of a repository directory, one name per line.
Without a path argument the repository root is listed.`,
	Example: `% flotilla fs ls --repo myproject refs/heads
dev
main`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		fs, _, err := buildFS(ctx, flotillaFlags.repo)
		if err != nil {
			wrapFatalln("wire storage backend", err)
			return
		}
		p := ""
		if len(args) == 1 {
			p = args[0]
		}
		names, err := fs.ReadDir(ctx, p)
		if err != nil {
			if repofs.IsPathTraversal(err) {
				wrapFatalWithCodef(2, "invalid path")
				return
			}
			wrapFatalln("list directory", err)
			return
		}
		for _, name := range names {
			infoLogger.Println(name)
		}
	},
}

func init() {
	fsCmd.AddCommand(fsLs)
}
