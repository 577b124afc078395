package main

import (
	"time"

	"github.com/spf13/cobra"
)

func offerCmd() *cobra.Command {
	var amountMsat uint64
	var description string
	c := &cobra.Command{
		Use:               "register-offer",
		Short:             "register a BOLT12 offer so peers can pay this node during settlement",
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			cred, err := selfAdminCredential(cmd.Context(), now)
			if err != nil {
				return err
			}
			return printResult(node.RegisterOffer(cmd.Context(), cred, amountMsat, description, now))
		},
	}
	c.Flags().Uint64Var(&amountMsat, "amount-msat", 0, "offer amount in msat (0 = amount-less offer)")
	c.Flags().StringVar(&description, "description", "", "offer description")
	return c
}
