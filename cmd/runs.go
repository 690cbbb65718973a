package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imishinist/exptrack/internal/config"
	"github.com/imishinist/exptrack/internal/models"
)

var runsCmd = &cobra.Command{
	Use:   "runs [root]",
	Short: "List experiment runs",
	Long:  "List the run directories under the output root, ordered by start time.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  listRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, args []string) error {
	root := config.New().OutputRoot
	if len(args) > 0 {
		root = args[0]
	}

	runs, err := models.ListRuns(root)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	for _, run := range runs {
		tag := run.Tag
		if tag == "" {
			tag = "-"
		}
		fmt.Printf("%s\t%s\t%s\n", run.StartTime.Format("2006-01-02 15:04:05"), tag, run.Path)
	}
	return nil
}
