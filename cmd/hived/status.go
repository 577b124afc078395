package main

import "github.com/spf13/cobra"

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "status",
		Short:             "report a coarse node health snapshot",
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(node.Status())
		},
	}
}
