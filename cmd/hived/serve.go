package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// schedulerTick is the shared ticker interval driving every periodic
// cooperative task. Settlement and credential-expiry work
// happens on much longer real-world cycles; the ticker just needs to be
// frequent enough that liveness and relay-dedup state stay fresh.
const schedulerTick = 30 * time.Second

// serveCmd runs the node as a long-lived daemon: it drives the
// periodic task scheduler until interrupted. The RPC surface itself is
// invoked through the other subcommands in this same process tree (or,
// in a future transport build, over whatever listener wraps rpc.Node);
// serve exists purely to keep the cooperative background jobs alive.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "serve",
		Short:             "run the periodic background task scheduler until interrupted",
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched.Run(func(taskCtx context.Context, fn func()) {
				ticker := time.NewTicker(schedulerTick)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						fn()
					case <-taskCtx.Done():
						return
					}
				}
			})

			fmt.Println("hived: scheduler running, press ctrl-c to stop")
			<-ctx.Done()
			sched.Stop()
			inbound.Stop()
			outbound.Stop()
			return nil
		},
	}
}
