package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/storage"
)

var fsCat = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a repository file to stdout",
	Long:  `Print the payload of one repository file to stdout, following symbolic links.`,
	Example: `% flotilla fs cat --repo myproject refs/heads/main
0f2d73a4e6b8c9f0aa31`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		fs, _, err := buildFS(ctx, flotillaFlags.repo)
		if err != nil {
			wrapFatalln("wire storage backend", err)
			return
		}
		rdr, err := fs.ReadFile(ctx, args[0])
		if err != nil {
			if repofs.IsPathTraversal(err) {
				wrapFatalWithCodef(2, "invalid path")
				return
			}
			wrapFatalln("read file", err)
			return
		}
		defer rdr.Close()
		if _, err = storage.PipeIO(os.Stdout, rdr); err != nil {
			wrapFatalln("stream file", err)
			return
		}
	},
}

func init() {
	fsCmd.AddCommand(fsCat)
}
