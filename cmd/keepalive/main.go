package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keepalive",
	Short: "Keep web apps and databases warm during business hours",
	Long: `keepalive pings a list of heartbeat URLs and writes a small row into each
configured database on a schedule, but only inside the configured business
window. Settings come from the environment (optionally a .env file and
keepalive.yaml) and are re-read on every tick.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(runCmd, onceCmd, preflightCmd, triggerCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
