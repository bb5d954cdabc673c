package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
)

var fsLink = &cobra.Command{
	Use:   "link <target> <linkpath>",
	Short: "Create a symbolic link in the repository",
	Long: `Create a symbolic link at linkpath pointing at target. The target string is
stored verbatim; on object backends the link is emulated with a tagged object.`,
	Example: `% flotilla fs link --repo myproject heads/main refs/current`,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		fs, _, err := buildFS(ctx, flotillaFlags.repo)
		if err != nil {
			wrapFatalln("wire storage backend", err)
			return
		}
		if err = fs.Symlink(ctx, args[0], args[1]); err != nil {
			if repofs.IsPathTraversal(err) {
				wrapFatalWithCodef(2, "invalid path")
				return
			}
			wrapFatalln("create link", err)
			return
		}
	},
}

func init() {
	fsCmd.AddCommand(fsLink)
}
