package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newSource() *Source { return NewSource(viper.New()) }

func TestProcess_ParsesAndDefaults(t *testing.T) {
	t.Setenv("API_ADDR", ":9090")
	t.Setenv("LOG_DIR", "./_testlogs")
	t.Setenv("PUBLIC_API_KEYS", "pub_a, pub_b")
	t.Setenv("ADMIN_API_KEYS", "adm_x")
	t.Setenv("HTTP_TIMEOUT_MS", "1234")
	t.Setenv("KEEPALIVE_RUN_ON_STARTUP", "false")
	t.Setenv("KEEPALIVE_REPORT_DSN", " postgres://reports ")

	cfg := newSource().Process()

	if cfg.TrustProxy {
		t.Fatalf("trust proxy must default to false")
	}
	if cfg.ReportDSN != "postgres://reports" {
		t.Fatalf("report dsn: %q", cfg.ReportDSN)
	}

	if cfg.Addr != ":9090" || cfg.LogDir != "./_testlogs" {
		t.Fatalf("addr/logdir wrong: %+v", cfg)
	}
	if len(cfg.PublicAPIKeys) != 2 || cfg.PublicAPIKeys[1] != "pub_b" {
		t.Fatalf("public keys wrong: %+v", cfg.PublicAPIKeys)
	}
	if len(cfg.AdminAPIKeys) != 1 || cfg.AdminAPIKeys[0] != "adm_x" {
		t.Fatalf("admin keys wrong: %+v", cfg.AdminAPIKeys)
	}
	if cfg.HTTPTimeout != 1234*time.Millisecond {
		t.Fatalf("http timeout: %v", cfg.HTTPTimeout)
	}
	if cfg.RunOnStartup {
		t.Fatalf("expected run-on-startup disabled")
	}
	if cfg.Schedule != DefaultSchedule || cfg.Actor != "ChronJob" || cfg.Message != "Keeping Alive" {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := newSource().Process()
	cfg.Schedule = "every now and then"
	cfg.Table = "logs; drop table x"
	cfg.LogLevel = "chatty"
	cfg.Addr = "no-port"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, field := range []string{"Schedule", "Table", "LogLevel", "Addr"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("expected error on %s, got %v", field, err)
		}
	}
}

func TestWindow_ReadFreshEachCall(t *testing.T) {
	src := newSource()

	t.Setenv("WORK_START", "08:00")
	if got := src.Window().Start; got != "08:00" {
		t.Fatalf("start=%q", got)
	}
	t.Setenv("WORK_START", "09:30")
	if got := src.Window().Start; got != "09:30" {
		t.Fatalf("change not picked up: start=%q", got)
	}
}

func TestWindowSettings_ValidateAndParse(t *testing.T) {
	w := WindowSettings{TimeZone: "America/New_York", WorkDays: "Mon-Fri", Start: "07:00", End: "19:00"}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg, err := w.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Start != 7*time.Hour || cfg.End != 19*time.Hour {
		t.Fatalf("parsed window wrong: %+v", cfg)
	}

	w.End = "7pm"
	if err := w.Validate(); err == nil {
		t.Fatalf("expected error for malformed end")
	}
	if _, err := w.Parse(); err == nil {
		t.Fatalf("expected parse error for malformed end")
	}
}

func TestWindowSettings_ZoneKnown(t *testing.T) {
	if !(WindowSettings{TimeZone: "Eastern Standard Time"}).ZoneKnown() {
		t.Fatalf("windows id should resolve")
	}
	if (WindowSettings{TimeZone: "Nowhere/Special"}).ZoneKnown() {
		t.Fatalf("bogus zone should not resolve")
	}
}

func TestHeartbeatURLs_DefaultsAndEmpty(t *testing.T) {
	src := newSource()
	_, urls := src.HeartbeatURLs()
	if len(urls) != 2 {
		t.Fatalf("want 2 default urls, got %v", urls)
	}

	t.Setenv("HEARTBEAT_URL", " https://a.example/hb , ,https://b.example/hb,")
	raw, urls := src.HeartbeatURLs()
	if raw == "" || len(urls) != 2 || urls[0] != "https://a.example/hb" {
		t.Fatalf("unexpected parse: %q -> %v", raw, urls)
	}

	t.Setenv("HEARTBEAT_URL", "")
	if _, urls := src.HeartbeatURLs(); len(urls) != 0 {
		t.Fatalf("explicitly empty setting should yield no urls, got %v", urls)
	}
}

func TestConnectionString_Lookup(t *testing.T) {
	src := newSource()

	t.Setenv("ConnectionStrings__reporting", "postgres://r")
	if v, key, ok := src.ConnectionString("reporting"); !ok || v != "postgres://r" || key != "ConnectionStrings__reporting" {
		t.Fatalf("double-underscore lookup: %q %q %v", v, key, ok)
	}

	t.Setenv("CONNECTIONSTRINGS_AUDIT_DB", "postgres://audit")
	if v, _, ok := src.ConnectionString("audit-db"); !ok || v != "postgres://audit" {
		t.Fatalf("viper lookup: %q %v", v, ok)
	}

	t.Setenv("DATABASE_URL", "postgres://legacy")
	if v, key, ok := src.ConnectionString("primary"); !ok || v != "postgres://legacy" || key != "DATABASE_URL" {
		t.Fatalf("legacy lookup: %q %q %v", v, key, ok)
	}

	if _, _, ok := src.ConnectionString("missing"); ok {
		t.Fatalf("missing identifier should not resolve")
	}
	if _, _, ok := src.ConnectionString("  "); ok {
		t.Fatalf("blank identifier should not resolve")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a ,, b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("SplitList: %v", got)
	}
	if SplitList("") != nil {
		t.Fatalf("empty input should give nil")
	}
}
