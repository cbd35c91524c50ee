package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "relay",
		Short: "Mirror activity events from Redis into the Neo4j lineage graph",
		Long:  "Subscribes to the activity channel and applies every event to the lineage graph. Also serves /metrics when METRICS_ENABLED is set. Runs until interrupted.",
		Run:   runRelay,
	})
}

func runRelay(cmd *cobra.Command, args []string) {
	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay, err := a.NewRelay(ctx)
	if err != nil {
		exitErr("build relay", err)
		return
	}
	a.Start(ctx)
	if err := relay.Start(ctx); err != nil {
		exitErr("start relay", err)
		return
	}
	<-ctx.Done()
	a.Log.Info("Relay shutting down")
}
