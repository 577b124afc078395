package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hivecoordinator/internal/settlement"
)

func settlementCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "settlement", Short: "distributed weekly settlement operations"}
	cmd.AddCommand(settlementProposeCmd())
	cmd.AddCommand(settlementHistoryCmd())
	cmd.AddCommand(settlementVoteCmd())
	cmd.AddCommand(settlementExecuteCmd())
	return cmd
}

func settlementProposeCmd() *cobra.Command {
	var networkOptimized bool
	c := &cobra.Command{
		Use:               "propose <period>",
		Short:             "propose a settlement for an ISO year-week period (e.g. 2026-W31)",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			cred, err := selfAdminCredential(cmd.Context(), now)
			if err != nil {
				return err
			}
			mode := settlement.ModeStandard
			if networkOptimized {
				mode = settlement.ModeNetworkOptimized
			}
			reputationOf := func(peerID string) string {
				agg, err := node.Reputation.Aggregate(peerID, "", now)
				if err != nil {
					return ""
				}
				return string(agg.Tier)
			}
			return printResult(node.ProposeSettlement(cred, args[0], mode, reputationOf, now))
		},
	}
	c.Flags().BoolVar(&networkOptimized, "network-optimized", false, "use the network-optimized fair-share weighting")
	return c
}

func settlementHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "history <period>",
		Short:             "show the settlement proposal for a period, if any",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(node.ListSettlementHistory(args[0]))
		},
	}
}

// settlementVoteCmd independently recomputes this node's view of
// period's contributions and, if both hashes match the existing
// proposal, casts and dispatches a SETTLEMENT_READY vote through rpc.Node.VoteSettlement.
func settlementVoteCmd() *cobra.Command {
	var networkOptimized bool
	c := &cobra.Command{
		Use:               "vote <period>",
		Short:             "recompute and cast this node's vote on a period's settlement proposal",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			cred, err := selfAdminCredential(cmd.Context(), now)
			if err != nil {
				return err
			}
			mode := settlement.ModeStandard
			if networkOptimized {
				mode = settlement.ModeNetworkOptimized
			}
			reputationOf := func(peerID string) string {
				agg, err := node.Reputation.Aggregate(peerID, "", now)
				if err != nil {
					return ""
				}
				return string(agg.Tier)
			}
			return printResult(node.VoteSettlement(cmd.Context(), cred, args[0], mode, reputationOf, now))
		},
	}
	c.Flags().BoolVar(&networkOptimized, "network-optimized", false, "use the network-optimized fair-share weighting")
	return c
}

// settlementExecuteCmd runs this node's share of a ready proposal's
// payment plan and dispatches the resulting SETTLEMENT_EXECUTE through rpc.Node.ExecuteSettlement. --offer associates
// a payee peer_id with the BOLT12 offer this node pays it through,
// standing in for the offer-discovery surface a real deployment would
// learn via KindPeerReputationSnapshot/gossip instead of an operator
// flag.
func settlementExecuteCmd() *cobra.Command {
	var offerPairs []string
	c := &cobra.Command{
		Use:               "execute <period>",
		Short:             "execute this node's share of a ready settlement proposal's payment plan",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			cred, err := selfAdminCredential(cmd.Context(), now)
			if err != nil {
				return err
			}
			offers, err := parseOfferPairs(offerPairs)
			if err != nil {
				return err
			}
			lookup := settlement.OfferLookup(func(peerID string) (string, bool) {
				bolt12, ok := offers[peerID]
				return bolt12, ok
			})
			pay := settlement.PayFunc(func(ctx context.Context, bolt12 string, amountSat int64) error {
				bolt11, err := node.LN.FetchInvoice(ctx, bolt12, uint64(amountSat)*1000)
				if err != nil {
					return err
				}
				return node.LN.Pay(ctx, bolt11)
			})
			return printResult(node.ExecuteSettlement(cmd.Context(), cred, args[0], lookup, pay, now))
		},
	}
	c.Flags().StringSliceVar(&offerPairs, "offer", nil, "peer_id=bolt12 pair, repeatable, for each payee this node must pay")
	return c
}

func parseOfferPairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return nil, fmt.Errorf("settlement execute: malformed --offer %q, want peer_id=bolt12", p)
		}
		out[kv[0]] = kv[1]
	}
	return out, nil
}
