package repo_test

import (
	"testing"

	"github.com/hamed0406/keepalive/internal/probe"
	"github.com/hamed0406/keepalive/internal/repo"
	"github.com/hamed0406/keepalive/internal/repo/memory"
	pg "github.com/hamed0406/keepalive/internal/repo/postgres"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.ReportStore = memory.New()
	var _ repo.ReportStore = (*pg.Store)(nil)
	var _ probe.HeartbeatWriter = (*pg.Writer)(nil)
}
