package storage

import (
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// HealthStatus represents the health status of a component
type HealthStatus int

const (
	HealthStatusHealthy HealthStatus = iota
	HealthStatusDegraded
	HealthStatusUnhealthy
)

func (hs HealthStatus) String() string {
	switch hs {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthReport is a point-in-time view of the store
type HealthReport struct {
	Status    string        `json:"status"`
	Location  string        `json:"location"`
	LSMBytes  int64         `json:"lsm_bytes"`
	VLogBytes int64         `json:"vlog_bytes"`
	Uptime    time.Duration `json:"uptime"`
	GCRunning bool          `json:"gc_running"`
	GC        GCMetrics     `json:"gc"`
}

// CheckDatabaseHealth verifies a read transaction can be opened
func (s *BadgerStorage) CheckDatabaseHealth() HealthStatus {
	if s.IsClosed() {
		return HealthStatusUnhealthy
	}
	err := s.db.View(func(txn *badger.Txn) error {
		return nil
	})
	if err != nil {
		return HealthStatusUnhealthy
	}
	if s.gcEnabled && !s.gc.IsRunning() {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}

// Health returns the current health report
func (s *BadgerStorage) Health() HealthReport {
	report := HealthReport{
		Status:   s.CheckDatabaseHealth().String(),
		Location: s.location,
		Uptime:   time.Since(s.openedAt),
	}
	if !s.IsClosed() {
		report.LSMBytes, report.VLogBytes = s.db.Size()
	}
	if s.gc != nil {
		report.GCRunning = s.gc.IsRunning()
		report.GC = s.gc.Metrics()
	}
	return report
}
