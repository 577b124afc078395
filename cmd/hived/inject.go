package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"hivecoordinator/internal/rpc"
	"hivecoordinator/internal/wire"
)

// injectCmd reads a raw peer envelope from disk and submits it through
// the single-writer-per-peer dispatch.Inbound path, the
// same path a future transport adapter would feed from its own
// connection-handling goroutine. It exists to simulate or replay
// inbound peer traffic for manual testing, and to give
// the dispatch.Inbound path a real, non-test caller.
func injectCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "inject-packet <envelope-file>",
		Short:             "decode and dispatch a raw peer envelope file through the inbound path",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			env, err := wire.Decode(raw)
			if err != nil {
				return printResult(rpc.Result{OK: false, Error: err.Error()})
			}

			result := make(chan rpc.Result, 1)
			inbound.Submit(env.Sender, inboundJob{raw: raw, now: time.Now(), result: result})
			return printResult(<-result)
		},
	}
}
