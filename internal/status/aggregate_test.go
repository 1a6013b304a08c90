package status

import (
	"testing"
	"time"

	"github.com/bissquit/orgstatus/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAggregateStatus(t *testing.T) {
	svc := func(s domain.ServiceStatus) domain.Service { return domain.Service{Status: s} }

	tests := []struct {
		name     string
		services []domain.Service
		want     domain.ServiceStatus
	}{
		{"empty", nil, domain.ServiceStatusOperational},
		{"all operational", []domain.Service{svc(domain.ServiceStatusOperational), svc(domain.ServiceStatusOperational)}, domain.ServiceStatusOperational},
		{"one degraded", []domain.Service{svc(domain.ServiceStatusOperational), svc(domain.ServiceStatusDegraded)}, domain.ServiceStatusDegraded},
		{"partial beats degraded", []domain.Service{svc(domain.ServiceStatusDegraded), svc(domain.ServiceStatusPartialOutage)}, domain.ServiceStatusPartialOutage},
		{"major beats all", []domain.Service{
			svc(domain.ServiceStatusPartialOutage),
			svc(domain.ServiceStatusMajorOutage),
			svc(domain.ServiceStatusDegraded),
		}, domain.ServiceStatusMajorOutage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.services))
		})
	}
}

func TestUptime(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	entry := func(s domain.ServiceStatus, age time.Duration) domain.StatusHistoryEntry {
		return domain.StatusHistoryEntry{Status: s, Timestamp: now.Add(-age)}
	}

	t.Run("empty history", func(t *testing.T) {
		assert.Equal(t, 100.0, Uptime(nil, now))
	})

	t.Run("operational entries are free", func(t *testing.T) {
		history := []domain.StatusHistoryEntry{
			entry(domain.ServiceStatusOperational, time.Hour),
			entry(domain.ServiceStatusOperational, 2*time.Hour),
		}
		assert.Equal(t, 100.0, Uptime(history, now))
	})

	t.Run("each non operational entry costs half a percent", func(t *testing.T) {
		history := []domain.StatusHistoryEntry{
			entry(domain.ServiceStatusOperational, time.Hour),
			entry(domain.ServiceStatusDegraded, 2*time.Hour),
			entry(domain.ServiceStatusDegraded, 3*time.Hour),
			entry(domain.ServiceStatusMajorOutage, 4*time.Hour),
		}
		assert.Equal(t, 98.5, Uptime(history, now))
	})

	t.Run("entries outside window are ignored", func(t *testing.T) {
		history := []domain.StatusHistoryEntry{
			entry(domain.ServiceStatusMajorOutage, 31*24*time.Hour),
			entry(domain.ServiceStatusDegraded, 24*time.Hour),
		}
		assert.Equal(t, 99.5, Uptime(history, now))
	})

	t.Run("clamped at zero", func(t *testing.T) {
		history := make([]domain.StatusHistoryEntry, 0, 250)
		for i := 0; i < 250; i++ {
			history = append(history, entry(domain.ServiceStatusPartialOutage, time.Minute))
		}
		assert.Equal(t, 0.0, Uptime(history, now))
	})
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "100.00", FormatUptime(100))
	assert.Equal(t, "98.50", FormatUptime(98.5))
	assert.Equal(t, "0.00", FormatUptime(0))
}
