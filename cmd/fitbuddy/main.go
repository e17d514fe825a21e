package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "fitbuddy",
	Short:         "Fit Buddy, a diet and fitness chat assistant",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadDotEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("session", "default", "session id used by client commands")
	rootCmd.PersistentFlags().String("server", "", "server base URL (default http://127.0.0.1:<server.port>)")

	rootCmd.AddCommand(startCmd, mcpCmd, statusCmd)
	rootCmd.AddCommand(chatCmd, profileCmd, resetCmd, mealsCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
