package main

import "github.com/spf13/cobra"

func schemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "schemas",
		Short:             "list the static management schema/action registry",
		PersistentPreRunE: bootstrap,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResult(node.ListManagementSchemas())
		},
	}
}
