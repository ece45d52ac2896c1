package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health and readiness",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := newClient()

	live, err := client.getHealth("/healthz")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	ready, err := client.getHealth("/readyz")
	if err != nil {
		// Readiness failure is not fatal; the server might still be starting.
		ready = err.Error()
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(map[string]string{"liveness": live, "readiness": ready})
	}

	printTable([]string{"Check", "Status"}, [][]string{
		{"Liveness", live},
		{"Readiness", ready},
	})
	return nil
}
