package main

import (
	"time"

	"github.com/spf13/cobra"

	"hivecoordinator/internal/membership"
)

func peerCmd() *cobra.Command {
	var peerID string
	var capacity, forwards, fees, rebalance uint64
	c := &cobra.Command{
		Use:               "report-snapshot",
		Short:             "report a best-effort peer fee/forward state snapshot",
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			cred, err := selfAdminCredential(cmd.Context(), now)
			if err != nil {
				return err
			}
			s := &membership.PeerSnapshot{
				PeerID:             peerID,
				CapacitySats:       capacity,
				ForwardCount:       forwards,
				FeesEarnedSats:     fees,
				RebalanceCostsSats: rebalance,
				LastSnapshotTS:     now,
			}
			return printResult(node.ReportPeerSnapshot(cred, s, now))
		},
	}
	c.Flags().StringVar(&peerID, "peer-id", "", "peer this snapshot describes")
	c.Flags().Uint64Var(&capacity, "capacity-sats", 0, "channel capacity sats")
	c.Flags().Uint64Var(&forwards, "forward-count", 0, "forward count")
	c.Flags().Uint64Var(&fees, "fees-earned-sats", 0, "fees earned sats")
	c.Flags().Uint64Var(&rebalance, "rebalance-costs-sats", 0, "rebalance costs sats")
	c.MarkFlagRequired("peer-id")
	return c
}
