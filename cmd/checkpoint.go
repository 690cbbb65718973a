package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/imishinist/exptrack/internal/saver"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint <path>",
	Short: "Inspect a checkpoint",
	Long: `Resolve and summarize a checkpoint.
Given a directory, the most recently modified checkpoint inside it (or
inside its ckpt subdirectory) is used.`,
	Args: cobra.ExactArgs(1),
	RunE: showCheckpoint,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
}

func showCheckpoint(cmd *cobra.Command, args []string) error {
	ck, err := saver.LoadCheckpoint(args[0])
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	fmt.Printf("name: %s\nepoch: %d\nparameters: %d\n", ck.Name, ck.Epoch, len(ck.State))

	names := make([]string, 0, len(ck.State))
	for name := range ck.State {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %v\n", name, ck.State[name].Shape)
	}
	return nil
}
