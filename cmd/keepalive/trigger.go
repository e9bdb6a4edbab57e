package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/keepalive/internal/domain"
)

var (
	triggerAPI     string
	triggerKey     string
	triggerTimeout time.Duration
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Ask a running agent to tick now",
	Long: `Send POST /api/ticks to a running agent. The tick still honours the
business window. The admin key is read from --key or KEEPALIVE_API_KEY.

Examples:
  keepalive trigger
  keepalive trigger --api http://10.0.0.5:8080 --key adm_123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := triggerKey
		if key == "" {
			key = os.Getenv("KEEPALIVE_API_KEY")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), triggerTimeout)
		defer cancel()

		rep, err := postTrigger(ctx, http.DefaultClient, triggerAPI, key)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), rep)
		return nil
	},
}

func init() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	triggerCmd.Flags().StringVar(&triggerAPI, "api", api, "base URL of the running agent")
	triggerCmd.Flags().StringVar(&triggerKey, "key", "", "admin API key")
	triggerCmd.Flags().DurationVar(&triggerTimeout, "timeout", 90*time.Second, "how long to wait for the tick")
}

func postTrigger(ctx context.Context, c *http.Client, api, key string) (domain.TickReport, error) {
	var rep domain.TickReport
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(api, "/")+"/api/ticks", nil)
	if err != nil {
		return rep, err
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := c.Do(req)
	if err != nil {
		return rep, fmt.Errorf("contacting agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return rep, fmt.Errorf("agent returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return rep, fmt.Errorf("decode report: %w", err)
	}
	return rep, nil
}

func printSummary(w io.Writer, rep domain.TickReport) {
	if !rep.Active {
		fmt.Fprintf(w, "tick %s skipped: %s (local %s %s)\n",
			rep.ID, rep.SkipReason, rep.LocalTime.Format("Mon 15:04"), rep.TimeZone)
		return
	}
	for _, o := range rep.Outcomes {
		fmt.Fprintf(w, "%-9s %s  %s\n", o.Status, o.Target.Label(), o.Detail)
	}
	for _, s := range rep.Skipped {
		fmt.Fprintf(w, "%-9s %s  no connection string\n", "skipped", s)
	}
	c := rep.Counts()
	fmt.Fprintf(w, "tick %s: %d ok, %d degraded, %d failed\n",
		rep.ID, c[domain.StatusSuccess], c[domain.StatusDegraded], c[domain.StatusFailed])
}
