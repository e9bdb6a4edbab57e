package config

import (
	"net"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/robfig/cron/v3"

	"github.com/hamed0406/keepalive/internal/window"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CronParser understands 6-field specs with a leading seconds field as well
// as descriptors such as @every 5m.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.By(validateHostPort)),
		validation.Field(&c.LogDir, validation.Required),
		validation.Field(&c.LogLevel,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
		validation.Field(&c.Schedule, validation.Required, validation.By(validateSchedule)),
		validation.Field(&c.HTTPTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.DBTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.TickDeadline, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Table,
			validation.Required,
			validation.Match(tableName).Error("must be a plain or schema-qualified identifier"),
		),
		validation.Field(&c.Actor, validation.Required),
		validation.Field(&c.Message, validation.Required),
		validation.Field(&c.TriggerRPM, validation.Min(0)),
		validation.Field(&c.TriggerBurst, validation.Min(0)),
	)
}

// Validate checks the parts of the window that would stop a tick. An unknown
// time zone is not an error; see ZoneKnown.
func (w *WindowSettings) Validate() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.WorkDays, validation.Required),
		validation.Field(&w.Start, validation.Required, validation.By(validateTimeOfDay)),
		validation.Field(&w.End, validation.Required, validation.By(validateTimeOfDay)),
	)
}

// Parse turns the raw settings into a window.Config.
func (w WindowSettings) Parse() (window.Config, error) {
	return window.NewConfig(w.TimeZone, w.WorkDays, w.Start, w.End)
}

// ZoneKnown reports whether the time zone resolves without falling back.
func (w WindowSettings) ZoneKnown() bool {
	_, ok := window.LoadLocation(w.TimeZone)
	return ok
}

func validateTimeOfDay(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if _, err := window.ParseTimeOfDay(s); err != nil {
		return validation.NewError("validation_invalid_time_of_day", "must be HH:MM or HH:MM:SS")
	}
	return nil
}

func validateSchedule(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if _, err := CronParser.Parse(s); err != nil {
		return validation.NewError("validation_invalid_schedule", "must be a 6-field cron spec or descriptor")
	}
	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if addr == "" {
		return nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}
	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}
	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}
	return nil
}
