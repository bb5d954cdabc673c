package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
)

var fsWrite = &cobra.Command{
	Use:   "write <path>",
	Short: "Create or replace a repository file",
	Long: `Create or replace one repository file with the payload read from stdin, or
from --source when given. Parent directories are created as needed.`,
	Example: `% echo 0f2d73a4e6b8c9f0aa31 | flotilla fs write --repo myproject refs/heads/main`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		fs, _, err := buildFS(ctx, flotillaFlags.repo)
		if err != nil {
			wrapFatalln("wire storage backend", err)
			return
		}
		var source io.Reader = os.Stdin
		if flotillaFlags.write.source != "" {
			f, err := os.Open(flotillaFlags.write.source)
			if err != nil {
				wrapFatalln("open source file", err)
				return
			}
			defer f.Close()
			source = f
		}
		err = fs.WriteFile(ctx, args[0], source, os.FileMode(flotillaFlags.write.perm))
		if err != nil {
			if repofs.IsPathTraversal(err) {
				wrapFatalWithCodef(2, "invalid path")
				return
			}
			wrapFatalln("write file", err)
			return
		}
	},
}

func init() {
	addWriteSourceFlag(fsWrite)
	addWritePermFlag(fsWrite)
	fsCmd.AddCommand(fsWrite)
}
