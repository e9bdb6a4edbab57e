package window

import (
	"strings"
	"time"
	_ "time/tzdata" // containers often ship without /usr/share/zoneinfo
)

// windowsZones maps the Windows zone ids operators tend to copy from older
// deployments onto IANA names.
var windowsZones = map[string]string{
	"eastern standard time":     "America/New_York",
	"central standard time":     "America/Chicago",
	"mountain standard time":    "America/Denver",
	"us mountain standard time": "America/Phoenix",
	"pacific standard time":     "America/Los_Angeles",
	"alaskan standard time":     "America/Anchorage",
	"hawaiian standard time":    "Pacific/Honolulu",
	"gmt standard time":         "Europe/London",
	"w. europe standard time":   "Europe/Berlin",
	"utc":                       "UTC",
}

// LoadLocation resolves an IANA or Windows zone id. When the id cannot be
// resolved it returns time.Local and false.
func LoadLocation(id string) (*time.Location, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return time.Local, false
	}
	if iana, ok := windowsZones[strings.ToLower(id)]; ok {
		id = iana
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return time.Local, false
	}
	return loc, true
}
