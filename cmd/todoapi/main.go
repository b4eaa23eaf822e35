// Command todoapi runs the todo HTTP API.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/todo_service/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var envFiles []string

var rootCmd = &cobra.Command{
	Use:          "todoapi",
	Short:        "Multi-user todo API",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		config.LoadEnvFile(envFiles...)
	}
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Env files to load before reading the environment")
}
