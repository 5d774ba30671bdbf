// Hundreds answers questions about cricket players' international centuries.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hundreds",
	Short: "Hundreds answers questions about cricket centuries.",
	Long: `Hundreds is a small chat bot over a table of cricket players and the
centuries they scored in Tests, ODIs and T20Is. Ask it things like
"How many ODI hundreds does Virat Kohli have?" from the terminal, over HTTP,
a WebSocket or as an MCP tool.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: $HUNDREDS_CONFIG or ./hundreds.yaml)")
	rootCmd.AddCommand(serveCmd, askCmd, queryCmd, playersCmd, importCmd, mcpCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
