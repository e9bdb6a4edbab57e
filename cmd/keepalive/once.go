package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hamed0406/keepalive/internal/domain"
	"github.com/hamed0406/keepalive/internal/scheduler"
)

var errProbesFailed = errors.New("one or more probes failed")

var (
	onceForce  bool
	onceStrict bool
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single tick and print its report",
	Long: `Run one keep-alive tick and print the report as JSON.

Examples:
  keepalive once            # honours the business window
  keepalive once --force    # probe now, whatever the time
  keepalive once --strict   # exit 1 if any probe failed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		rep := a.agent.Tick(ctx, scheduler.TickOptions{Force: onceForce})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		if onceStrict && rep.Counts()[domain.StatusFailed] > 0 {
			return errProbesFailed
		}
		return nil
	},
}

func init() {
	onceCmd.Flags().BoolVar(&onceForce, "force", false, "ignore the business window")
	onceCmd.Flags().BoolVar(&onceStrict, "strict", false, "exit non-zero when a probe fails")
}
