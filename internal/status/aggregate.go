package status

import (
	"math"
	"strconv"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
)

// Uptime window and per-entry penalty.
const (
	UptimeWindow        = 30 * 24 * time.Hour
	uptimePenaltyPerHit = 0.5
)

// AggregateStatus returns the most severe status among the services.
// An organization without services is operational.
func AggregateStatus(services []domain.Service) domain.ServiceStatus {
	overall := domain.ServiceStatusOperational
	for _, s := range services {
		if s.Status.Rank() > overall.Rank() {
			overall = s.Status
		}
	}
	return overall
}

// Uptime estimates availability over the trailing 30 days as
// 100 - 0.5 * (non-operational history entries in the window), clamped to
// [0, 100]. This is a coarse heuristic, not a time-weighted SLA figure.
func Uptime(history []domain.StatusHistoryEntry, now time.Time) float64 {
	since := now.Add(-UptimeWindow)

	hits := 0
	for _, entry := range history {
		if entry.Timestamp.Before(since) {
			continue
		}
		if entry.Status != domain.ServiceStatusOperational {
			hits++
		}
	}

	return math.Max(0, math.Min(100, 100-uptimePenaltyPerHit*float64(hits)))
}

// FormatUptime renders an uptime percentage with two decimals.
func FormatUptime(uptime float64) string {
	return strconv.FormatFloat(uptime, 'f', 2, 64)
}
