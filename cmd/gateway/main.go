// Command gateway is the CLI entrypoint for the multi-broker equity
// trading gateway: it loads configuration, wires the adapter registry,
// and exposes subcommands for interactive credential setup, one-shot
// order routing, status inspection, and running the long-lived service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	dotenvPath string
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Multi-broker equity trading gateway",
	Long: `gateway authenticates against, routes orders to, and aggregates market
data from multiple equity brokers behind one canonical API.`,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gateway.yaml", "path to the gateway config file")
	rootCmd.PersistentFlags().StringVar(&dotenvPath, "dotenv", ".env", "path to a dotenv file with broker secrets")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(routeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func requireNoError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func requireNoErrorMsg(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
