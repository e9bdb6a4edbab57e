package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/keepalive/internal/config"
	pg "github.com/hamed0406/keepalive/internal/repo/postgres"
	"github.com/hamed0406/keepalive/internal/window"
)

var errPreflightFailed = errors.New("preflight failed")

var preflightCreateTable bool

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check configuration before deploying",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := config.Load()
		if err != nil {
			return err
		}
		r := &preflightReport{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
		runPreflight(src, r, time.Now())

		if preflightCreateTable && !r.failed {
			cfg := src.Process()
			_, ids := src.Databases()
			for _, id := range ids {
				conn, _, ok := src.ConnectionString(id)
				if !ok {
					continue
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.DBTimeout)
				err := pg.EnsureHeartbeatTable(ctx, conn, cfg.Table)
				cancel()
				if err != nil {
					r.fail(fmt.Sprintf("%s: could not create %s: %v", id, cfg.Table, err))
				} else {
					r.ok(fmt.Sprintf("%s: table %s ready", id, cfg.Table))
				}
			}
		}

		if r.failed {
			return errPreflightFailed
		}
		r.ok("preflight passed")
		return nil
	},
}

func init() {
	preflightCmd.Flags().BoolVar(&preflightCreateTable, "create-table", false,
		"create the heartbeat table in every configured database")
}

type preflightReport struct {
	out, errOut io.Writer
	failed      bool
}

func (r *preflightReport) fail(msg string) {
	r.failed = true
	fmt.Fprintln(r.errOut, "✖", msg)
}

func (r *preflightReport) warn(msg string) { fmt.Fprintln(r.errOut, "⚠", msg) }
func (r *preflightReport) ok(msg string) { fmt.Fprintln(r.out, "✔", msg) }

func runPreflight(src *config.Source, r *preflightReport, now time.Time) {
	cfg := src.Process()
	if err := cfg.Validate(); err != nil {
		r.fail("process settings: " + err.Error())
	} else {
		r.ok("schedule " + cfg.Schedule)
	}

	ws := src.Window()
	if err := ws.Validate(); err != nil {
		r.fail("business window: " + err.Error())
	} else if wcfg, err := ws.Parse(); err != nil {
		r.fail("business window: " + err.Error())
	} else {
		if !ws.ZoneKnown() {
			r.warn(fmt.Sprintf("TIME_ZONE %q is unknown; the host time zone will be used", ws.TimeZone))
		}
		dec := window.Evaluate(now, wcfg)
		msg := fmt.Sprintf("window %s %s-%s %s; local now %s",
			wcfg.WorkDays, ws.Start, ws.End, dec.Location, dec.Local.Format("Mon 15:04"))
		if dec.Active {
			r.ok(msg + " (active)")
		} else {
			r.ok(msg + " (outside window)")
		}
	}

	_, urls := src.HeartbeatURLs()
	if len(urls) == 0 {
		r.warn("HEARTBEAT_URL is empty; no web apps will be pinged")
	}
	for _, u := range urls {
		if err := checkURL(u); err != nil {
			r.fail(fmt.Sprintf("heartbeat URL %q: %v", u, err))
		} else {
			r.ok("heartbeat " + u)
		}
	}

	_, ids := src.Databases()
	if len(ids) == 0 {
		r.warn("KEEPALIVE_DATABASES is empty; no databases will be touched")
	}
	for _, id := range ids {
		if _, key, ok := src.ConnectionString(id); ok {
			r.ok(fmt.Sprintf("database %s: connection string from %s", id, key))
		} else {
			r.warn(fmt.Sprintf("database %s: no connection string (set ConnectionStrings__%s); it will be skipped", id, id))
		}
	}

	if cfg.Addr != "" && len(cfg.AdminAPIKeys) == 0 {
		r.warn("ADMIN_API_KEYS is empty; anyone who can reach " + cfg.Addr + " can trigger ticks")
	}
	for name, keys := range map[string][]string{"ADMIN_API_KEYS": cfg.AdminAPIKeys, "PUBLIC_API_KEYS": cfg.PublicAPIKeys} {
		for _, k := range keys {
			if strings.ContainsAny(k, " \t") {
				r.warn(name + " contains whitespace inside a key")
			}
		}
	}
}

func checkURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
