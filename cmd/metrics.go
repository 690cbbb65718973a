package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imishinist/exptrack/internal/models"
	"github.com/imishinist/exptrack/internal/parser"
	"github.com/imishinist/exptrack/internal/sink"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics <run-dir>",
	Short: "Print recorded metrics",
	Long:  "Read a run's local event log and print the recorded scalar metrics.",
	Args:  cobra.ExactArgs(1),
	RunE:  showMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().String("key", "", "Only print metrics with this key (e.g. train/loss)")
}

func showMetrics(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("key")

	f, err := os.Open(filepath.Join(args[0], sink.EventsFile))
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	events, err := parser.ParseEvents(f)
	if err != nil {
		return fmt.Errorf("failed to parse event log: %w", err)
	}

	for _, ev := range events {
		if ev.Type != models.EventScalar {
			continue
		}
		if key != "" && ev.Key != key {
			continue
		}
		fmt.Printf("%s\t%d\t%g\n", ev.Key, ev.Step, ev.Value)
	}
	return nil
}
