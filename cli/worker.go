package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"reservo/cron"
	"reservo/database"
	"reservo/utils"

	"github.com/spf13/cobra"
)

// NewWorkerCommand creates the worker command, which only drains the relay queue.
func NewWorkerCommand() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the webhook relay worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := connect(ctx)
			if err != nil {
				return err
			}
			defer database.Close(context.Background())

			worker, err := cron.InitRelayWorker(ctx, b.relay, concurrency)
			if err != nil {
				return err
			}
			<-ctx.Done()
			utils.GetLogger().Info("worker: shutting down")
			worker.Shutdown()
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "number of concurrent relay tasks")
	return cmd
}
