package domain

import (
	"fmt"
	"time"
)

type TargetKind string

const (
	KindHTTP     TargetKind = "http"
	KindDatabase TargetKind = "database"
)

// Target is one keep-alive destination for a tick. Kind selects which of
// URL (http) or Name/ConnectionString (database) is meaningful.
type Target struct {
	Kind             TargetKind `json:"kind"`
	URL              string     `json:"url,omitempty"`
	Name             string     `json:"name,omitempty"`
	ConnectionString string     `json:"-"`
}

func HTTPTarget(url string) Target {
	return Target{Kind: KindHTTP, URL: url}
}

func DatabaseTarget(name, connString string) Target {
	return Target{Kind: KindDatabase, Name: name, ConnectionString: connString}
}

// Label is what log records and reports use to identify the target.
// Connection strings are never part of it.
func (t Target) Label() string {
	switch t.Kind {
	case KindHTTP:
		return t.URL
	case KindDatabase:
		return "db:" + t.Name
	default:
		return fmt.Sprintf("%s:%s%s", t.Kind, t.URL, t.Name)
	}
}

type Status string

const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded" // responded, but not with a success (e.g. 401)
	StatusFailed   Status = "failed"
)

type Outcome struct {
	Target     Target        `json:"target"`
	Status     Status        `json:"status"`
	Detail     string        `json:"detail"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Rows       int64         `json:"rows_affected,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	Err        error         `json:"-"`
}

func (o Outcome) Failed() bool { return o.Status == StatusFailed }

// Heartbeat is the row a database probe writes.
type Heartbeat struct {
	Actor   string
	Message string
	At      time.Time
}

type TickReport struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Active     bool      `json:"active"`
	SkipReason string    `json:"skip_reason,omitempty"`
	LocalTime  time.Time `json:"local_time"`
	TimeZone   string    `json:"time_zone"`
	Outcomes   []Outcome `json:"outcomes"`
	Skipped    []string  `json:"skipped,omitempty"` // targets dropped during resolution
}

// Counts tallies outcomes by status.
func (r TickReport) Counts() map[Status]int {
	out := map[Status]int{StatusSuccess: 0, StatusDegraded: 0, StatusFailed: 0}
	for _, o := range r.Outcomes {
		out[o.Status]++
	}
	return out
}
