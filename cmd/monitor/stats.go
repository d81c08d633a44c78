package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/selivandex/whale-monitor/internal/health"
)

func newStatsCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-stage counters and source circuit states",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStats(port)
		},
	}
	cmd.Flags().StringVar(&port, "port", defaultHealthPort(), "health server port of the running monitor")
	return cmd
}

func defaultHealthPort() string {
	if p := os.Getenv("HEALTH_PORT"); p != "" {
		return p
	}
	return "8086"
}

func runStats(port string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/stats", port))
	if err != nil {
		return fmt.Errorf("monitor not reachable on port %s: %w", port, err)
	}
	defer resp.Body.Close()

	var stats health.StatsStatus
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("failed to decode stats: %w", err)
	}

	fmt.Printf("Uptime: %s\n\n", stats.Uptime)

	fmt.Println("Pipeline stages:")
	names := make([]string, 0, len(stats.Stages))
	for name := range stats.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-12s %d\n", name, stats.Stages[name])
	}

	if len(stats.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range stats.Sources {
			state := "healthy"
			if !src.Healthy {
				state = "unhealthy"
			}
			fmt.Printf("  %-18s %-10s circuit=%-10s restarts=%d", src.ID, state, src.CircuitState, src.Restarts)
			if !src.LastEmit.IsZero() {
				fmt.Printf(" last_emit=%s", src.LastEmit.Format(time.RFC3339))
			}
			fmt.Println()
		}
	}
	return nil
}
