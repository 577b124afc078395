package main

import (
	"time"

	"github.com/spf13/cobra"

	"hivecoordinator/internal/intentlock"
)

func intentCmd() *cobra.Command {
	var kind, target string
	var deadlineSecs int
	c := &cobra.Command{
		Use:               "intent",
		Short:             "enqueue an intent-lock claim for a scarce action",
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			cred, err := selfAdminCredential(cmd.Context(), now)
			if err != nil {
				return err
			}
			i := intentlock.Intent{
				RequestID: randomRequestID(),
				Kind:      kind,
				Target:    target,
				PeerID:    node.SelfID,
				Deadline:  now.Add(time.Duration(deadlineSecs) * time.Second),
			}
			return printResult(node.EnqueueIntent(cred, i, now))
		},
	}
	c.Flags().StringVar(&kind, "kind", "", "intent kind (e.g. channel-open)")
	c.Flags().StringVar(&target, "target", "", "intent target (e.g. peer pubkey)")
	c.Flags().IntVar(&deadlineSecs, "deadline-seconds", 30, "how long this claim holds before it can be contested again")
	c.MarkFlagRequired("kind")
	c.MarkFlagRequired("target")
	return c
}
