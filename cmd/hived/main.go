// Command hived runs one hive coordinator node: it bootstraps every
// core subsystem and exposes the RPC/command surface as a cobra CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "hived",
		Short: "Lightning hive fleet coordinator",
	}
	root.PersistentFlags().StringVar(&envName, "env", "", "environment overlay config name (e.g. failsafe)")
	root.PersistentFlags().StringVar(&selfIDHex, "self-id", "", "this node's compressed pubkey, hex-encoded")

	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(settlementCmd())
	root.AddCommand(credentialCmd())
	root.AddCommand(schemasCmd())
	root.AddCommand(intentCmd())
	root.AddCommand(peerCmd())
	root.AddCommand(offerCmd())
	root.AddCommand(injectCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	envName   string
	selfIDHex string
)
