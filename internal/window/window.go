// Package window decides whether a moment falls inside the configured
// business-hours window.
//
// Day matching is layered and order sensitive. A "mon-fri" token admits
// Monday through Friday; explicit "sat" and "sun" tokens are checked after
// it, so "Mon-Fri,Sat" keeps Saturday active as well. Without "mon-fri",
// today's three-letter abbreviation must appear verbatim in the work-days
// string. Matching is by substring on the lower-cased value.
package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeZone = "America/New_York"
	DefaultWorkDays = "Mon-Fri"
	DefaultStart    = "07:00"
	DefaultEnd      = "19:00"
)

type Config struct {
	TimeZone string
	WorkDays string
	Start    time.Duration // offset from local midnight
	End      time.Duration
}

type Decision struct {
	Active     bool
	DayAllowed bool
	Local      time.Time
	Location   *time.Location
	// FellBack is set when TimeZone was not recognised and the host zone was used.
	FellBack bool
}

// IsActive reports whether now is inside the window described by cfg.
func IsActive(now time.Time, cfg Config) bool {
	return Evaluate(now, cfg).Active
}

// Evaluate is IsActive with the intermediate values kept for logging.
func Evaluate(now time.Time, cfg Config) Decision {
	loc, ok := LoadLocation(cfg.TimeZone)
	local := now.In(loc)
	d := Decision{Local: local, Location: loc, FellBack: !ok}

	d.DayAllowed = dayAllowed(strings.ToLower(cfg.WorkDays), local.Weekday())
	if !d.DayAllowed {
		return d
	}
	tod := timeOfDay(local)
	d.Active = tod >= cfg.Start && tod <= cfg.End
	return d
}

func dayAllowed(days string, wd time.Weekday) bool {
	monFri := strings.Contains(days, "mon-fri")
	if monFri && wd >= time.Monday && wd <= time.Friday {
		return true
	}
	if strings.Contains(days, "sat") && wd == time.Saturday {
		return true
	}
	if strings.Contains(days, "sun") && wd == time.Sunday {
		return true
	}
	if monFri {
		// weekend day with no explicit weekend token
		return false
	}
	return strings.Contains(days, abbrev(wd))
}

func abbrev(wd time.Weekday) string {
	return strings.ToLower(wd.String()[:3])
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

// ParseTimeOfDay accepts "H:MM", "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("time of day %q: want HH:MM or HH:MM:SS", s)
	}
	limits := []int{23, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var out time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] || (i > 0 && len(p) != 2) {
			return 0, fmt.Errorf("time of day %q: bad field %q", s, p)
		}
		out += time.Duration(n) * units[i]
	}
	return out, nil
}

// FormatTimeOfDay renders an offset from midnight as HH:MM:SS.
func FormatTimeOfDay(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}

// NewConfig parses the textual settings. The timezone is not checked here;
// an unknown zone falls back to the host zone at evaluation time.
func NewConfig(tz, workDays, start, end string) (Config, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Config{}, fmt.Errorf("work start: %w", err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Config{}, fmt.Errorf("work end: %w", err)
	}
	return Config{TimeZone: tz, WorkDays: workDays, Start: s, End: e}, nil
}
