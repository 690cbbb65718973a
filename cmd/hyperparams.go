package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imishinist/exptrack/internal/params"
	"github.com/imishinist/exptrack/internal/parser"
	"github.com/imishinist/exptrack/internal/saver"
)

var hyperparamsCmd = &cobra.Command{
	Use:   "hyperparams <path>",
	Short: "Print a run's hyperparameters",
	Long: `Print the hyperparameters recorded for a run.
The path may be the hyperparams file itself, the run directory
containing it, or a JSON/YAML bag file.`,
	Args: cobra.ExactArgs(1),
	RunE: showHyperparams,
}

func init() {
	rootCmd.AddCommand(hyperparamsCmd)
}

func showHyperparams(cmd *cobra.Command, args []string) error {
	bag, err := loadBag(args[0])
	if err != nil {
		return fmt.Errorf("failed to load hyperparams: %w", err)
	}

	for _, line := range params.Render(bag) {
		fmt.Println(line)
	}
	return nil
}

// loadBag reads a hyperparameter bag, dispatching on the file
// extension: JSON and YAML bag files are parsed as such, anything else
// goes through the run-metadata loader.
func loadBag(path string) (params.Bag, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s: %w", path, err)
		}
		defer file.Close()
		return parser.ParseJSONBag(file)
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file %s: %w", path, err)
		}
		defer file.Close()
		return parser.ParseYAMLBag(file)
	default:
		return saver.LoadHyperparams(path)
	}
}
