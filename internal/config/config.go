package config

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultHeartbeatURLs = "https://app.example.com/api/heartbeat,https://dev.example.com/api/heartbeat"
	DefaultDatabases     = "primary"
	DefaultSchedule      = "0 */5 * * * *"

	// LegacyDatabaseID is the identifier that still honours DATABASE_URL.
	LegacyDatabaseID = "primary"
)

// Config holds the process-level settings. They are read once at startup.
type Config struct {
	Addr      string // status server bind address; empty disables it
	LogDir    string
	LogLevel  string
	LogStdout bool

	Schedule     string // 6-field cron spec (seconds first)
	RunOnStartup bool
	SkipOverlap  bool

	HTTPTimeout  time.Duration // per HTTP probe
	DBTimeout    time.Duration // per database probe
	TickDeadline time.Duration // soft: exceeded ticks are logged, probes are not cut

	Table   string // heartbeat table, optionally schema-qualified
	Actor   string
	Message string

	DNSDiagnostics bool

	// ReportDSN, when set, persists tick reports in Postgres instead of memory.
	ReportDSN string

	PublicAPIKeys []string
	AdminAPIKeys  []string
	TriggerRPM    int
	TriggerBurst  int
	// TrustProxy makes the API take client addresses from forwarding headers.
	TrustProxy bool
}

// Source reads settings from the environment (and an optional keepalive.yaml).
// Every getter goes back to the environment, so changes take effect on the
// next tick without a restart.
type Source struct {
	mu sync.Mutex
	v  *viper.Viper
}

// Load reads an optional .env file and an optional keepalive.yaml, then
// layers the process environment on top.
func Load() (*Source, error) {
	// a missing .env is the normal case outside local dev
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("keepalive")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return NewSource(v), nil
}

// NewSource wires defaults and env lookup into v.
func NewSource(v *viper.Viper) *Source {
	v.SetDefault("api_addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_stdout", true)
	v.SetDefault("keepalive_schedule", DefaultSchedule)
	v.SetDefault("keepalive_run_on_startup", true)
	v.SetDefault("keepalive_skip_overlap", false)
	v.SetDefault("http_timeout_ms", 10_000)
	v.SetDefault("db_timeout_ms", 15_000)
	v.SetDefault("tick_deadline_ms", 60_000)
	v.SetDefault("keepalive_table", "keepalive_log")
	v.SetDefault("keepalive_actor", "ChronJob")
	v.SetDefault("keepalive_message", "Keeping Alive")
	v.SetDefault("dns_diagnostics", true)
	v.SetDefault("trigger_rpm", 6)
	v.SetDefault("trigger_burst", 2)
	v.SetDefault("trust_proxy", false)

	v.SetDefault("time_zone", "America/New_York")
	v.SetDefault("work_days", "Mon-Fri")
	v.SetDefault("work_start", "07:00")
	v.SetDefault("work_end", "19:00")
	v.SetDefault("heartbeat_url", DefaultHeartbeatURLs)
	v.SetDefault("keepalive_databases", DefaultDatabases)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	// HEARTBEAT_URL="" means "no URLs", not "use the defaults"
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	return &Source{v: v}
}

func (s *Source) str(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(key)
}

func (s *Source) boolean(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetBool(key)
}

func (s *Source) millis(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.v.GetInt64(key)) * time.Millisecond
}

func (s *Source) integer(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetInt(key)
}

// Process snapshots the process-level settings.
func (s *Source) Process() Config {
	return Config{
		Addr:           strings.TrimSpace(s.str("api_addr")),
		LogDir:         s.str("log_dir"),
		LogLevel:       strings.ToLower(s.str("log_level")),
		LogStdout:      s.boolean("log_stdout"),
		Schedule:       strings.TrimSpace(s.str("keepalive_schedule")),
		RunOnStartup:   s.boolean("keepalive_run_on_startup"),
		SkipOverlap:    s.boolean("keepalive_skip_overlap"),
		HTTPTimeout:    s.millis("http_timeout_ms"),
		DBTimeout:      s.millis("db_timeout_ms"),
		TickDeadline:   s.millis("tick_deadline_ms"),
		Table:          strings.TrimSpace(s.str("keepalive_table")),
		Actor:          s.str("keepalive_actor"),
		Message:        s.str("keepalive_message"),
		DNSDiagnostics: s.boolean("dns_diagnostics"),
		ReportDSN:      strings.TrimSpace(s.str("keepalive_report_dsn")),
		PublicAPIKeys:  SplitList(s.str("public_api_keys")),
		AdminAPIKeys:   SplitList(s.str("admin_api_keys")),
		TriggerRPM:     s.integer("trigger_rpm"),
		TriggerBurst:   s.integer("trigger_burst"),
		TrustProxy:     s.boolean("trust_proxy"),
	}
}

// WindowSettings is the raw, unparsed work window.
type WindowSettings struct {
	TimeZone string
	WorkDays string
	Start    string
	End      string
}

func (s *Source) Window() WindowSettings {
	return WindowSettings{
		TimeZone: s.str("time_zone"),
		WorkDays: s.str("work_days"),
		Start:    s.str("work_start"),
		End:      s.str("work_end"),
	}
}

// HeartbeatURLs returns the raw setting and the parsed list.
func (s *Source) HeartbeatURLs() (string, []string) {
	raw := s.str("heartbeat_url")
	return raw, SplitList(raw)
}

// Databases returns the raw setting and the parsed identifiers.
func (s *Source) Databases() (string, []string) {
	raw := s.str("keepalive_databases")
	return raw, SplitList(raw)
}

// ConnectionString resolves the connection string for a database identifier.
// Lookup order: ConnectionStrings__{id} in the environment,
// CONNECTIONSTRINGS_{ID} / ConnectionStrings.{id} through viper, and for
// the legacy identifier, DATABASE_URL. The second return value names the key
// that matched, for logging.
func (s *Source) ConnectionString(id string) (string, string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", false
	}
	key := "ConnectionStrings__" + id
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), key, true
	}
	if v := strings.TrimSpace(s.str("connectionstrings." + id)); v != "" {
		return v, "ConnectionStrings:" + id, true
	}
	if strings.EqualFold(id, LegacyDatabaseID) {
		if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
			return v, "DATABASE_URL", true
		}
	}
	return "", "", false
}

// SplitList splits a comma-separated value, trimming entries and dropping empties.
func SplitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
