package cmd

import (
	"github.com/spf13/cobra"
)

type flagsT struct {
	repo string

	write struct {
		source string
		perm   uint32
	}

	push struct {
		maxSize string
	}
}

var flotillaFlags flagsT

func addRepoNameFlag(cmd *cobra.Command) string {
	repo := "repo"
	cmd.PersistentFlags().StringVar(&flotillaFlags.repo, repo, "", "The name of the repository to operate on")
	return repo
}

func addWriteSourceFlag(cmd *cobra.Command) string {
	source := "source"
	cmd.Flags().StringVar(&flotillaFlags.write.source, source, "", "Read the payload from this file instead of stdin")
	return source
}

func addWritePermFlag(cmd *cobra.Command) string {
	perm := "perm"
	cmd.Flags().Uint32Var(&flotillaFlags.write.perm, perm, 0644, "Permission bits for the written file, where the backend can persist them")
	return perm
}

func addMaxSizeFlag(cmd *cobra.Command) string {
	maxSize := "max-size"
	cmd.Flags().StringVar(&flotillaFlags.push.maxSize, maxSize, "", "Byte budget for the pushed payload, e.g. 512MiB (overrides the configured maxpushsize)")
	return maxSize
}
