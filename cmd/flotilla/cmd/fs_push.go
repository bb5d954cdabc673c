package cmd

import (
	"context"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CPU-JIA/Flotilla-sub008/pkg/limitio"
	"github.com/CPU-JIA/Flotilla-sub008/pkg/repofs"
)

var fsPush = &cobra.Command{
	Use:   "push <path>",
	Short: "Push a bounded payload into the repository",
	Long: `Write a repository file from stdin under a byte budget, the way the server
bounds an incoming push. A payload running over the budget aborts the
transfer with a distinct exit code and reports the true size received.`,
	Example: `% git bundle create - --all | flotilla fs push --repo myproject --max-size 512MiB incoming/bundle`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		budget := flotillaFlags.push.maxSize
		if budget == "" {
			budget = config.MaxPushSize
		}
		limit, err := units.RAMInBytes(budget)
		if err != nil {
			wrapFatalln("parse byte budget "+budget, err)
			return
		}

		ctx := context.Background()
		fs, logger, err := buildFS(ctx, flotillaFlags.repo)
		if err != nil {
			wrapFatalln("wire storage backend", err)
			return
		}

		counted := limitio.NewReader(os.Stdin, "push", limit,
			limitio.OnLimitExceeded(func(received int64) {
				logger.Warn("push aborted over byte budget",
					zap.Int64("received", received),
					zap.Int64("limit", limit))
			}),
		)
		err = fs.WriteFile(ctx, args[0], counted, 0644)
		switch {
		case err == nil:
			infoLogger.Printf("pushed %d bytes", counted.BytesReceived())
		case repofs.IsPayloadTooLarge(err):
			// no storage detail leaks here, just the budget and the verdict
			wrapFatalWithCodef(3, "payload too large: received %d bytes over a %s budget",
				counted.BytesReceived(), units.BytesSize(float64(limit)))
		case repofs.IsPathTraversal(err):
			wrapFatalWithCodef(2, "invalid path")
		default:
			wrapFatalln("push", err)
		}
	},
}

func init() {
	addMaxSizeFlag(fsPush)
	fsCmd.AddCommand(fsPush)
}
