package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Exit codes: 0 success, 1 usage error, 2 runtime error
func main() {
	rootCmd := &cobra.Command{
		Use:           "whale-monitor",
		Short:         "Real-time whale transaction classification pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newStartCmd(),
		newStopCmd(),
		newStatsCmd(),
		newCleanupCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsageError(err) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func isUsageError(err error) bool {
	if _, ok := err.(*usageError); ok {
		return true
	}
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "invalid argument")
}
