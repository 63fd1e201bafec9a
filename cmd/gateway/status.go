package main

import (
	"context"

	"github.com/spf13/cobra"
)

type brokerStatus struct {
	BrokerID string `json:"broker_id"`
	Kind     string `json:"kind"`
	Enabled  bool   `json:"enabled"`
	Active   bool   `json:"active"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the configured broker set and which are active",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx)
		requireNoError(err)

		active := make(map[string]bool)
		for _, id := range a.orchestrator.ActiveBrokerIDs() {
			active[id] = true
		}

		out := make([]brokerStatus, 0, len(a.cfg.Brokers))
		for _, b := range a.cfg.Brokers {
			out = append(out, brokerStatus{BrokerID: b.ID, Kind: b.Kind, Enabled: b.Enabled, Active: active[b.ID]})
		}
		printJSON(out)
	},
}
