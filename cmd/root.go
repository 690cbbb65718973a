package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "exptrack",
	Short: "Experiment run artifact tool",
	Long: `A command line tool for inspecting experiment run directories.
Lists runs, prints recorded hyperparameters, resolves checkpoints and
reads the local metric event log.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("tracking-uri", "", "MLflow tracking URI (overrides EXPTRACK_TRACKING_URI)")
	rootCmd.PersistentFlags().String("output-root", "", "Runs output root (overrides EXPTRACK_OUTPUT_ROOT)")
	viper.BindPFlag("tracking_uri", rootCmd.PersistentFlags().Lookup("tracking-uri"))
	viper.BindPFlag("output_root", rootCmd.PersistentFlags().Lookup("output-root"))
}

func initConfig() {
	// Environment variables
	viper.SetEnvPrefix("EXPTRACK")
	viper.AutomaticEnv()

	// Also bind Databricks environment variables
	viper.BindEnv("databricks_host", "DATABRICKS_HOST")
	viper.BindEnv("databricks_token", "DATABRICKS_TOKEN")

	// Set defaults
	viper.SetDefault("tracking_uri", "http://localhost:5000")
	viper.SetDefault("output_root", "experiments")
}
