// Package metrics reports connection pool utilization.
package metrics

import (
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolStats holds connection pool statistics common to database/sql and pgxpool.
type PoolStats struct {
	Open         int           `json:"open_connections"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	MaxOpen      int           `json:"max_open_connections"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"-"`
}

// SQLStats reads the statistics of a database/sql pool.
func SQLStats(db *sql.DB) PoolStats {
	if db == nil {
		return PoolStats{}
	}
	s := db.Stats()
	return PoolStats{
		Open:         s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		MaxOpen:      s.MaxOpenConnections,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
	}
}

// PGXStats reads the statistics of a pgx pool.
func PGXStats(pool *pgxpool.Pool) PoolStats {
	if pool == nil {
		return PoolStats{}
	}
	s := pool.Stat()
	return PoolStats{
		Open:         int(s.TotalConns()),
		InUse:        int(s.AcquiredConns()),
		Idle:         int(s.IdleConns()),
		MaxOpen:      int(s.MaxConns()),
		WaitCount:    s.EmptyAcquireCount(),
		WaitDuration: s.AcquireDuration(),
	}
}

type HealthStatus string

const (
	PoolHealthy   HealthStatus = "healthy"
	PoolDegraded  HealthStatus = "degraded"
	PoolUnhealthy HealthStatus = "unhealthy"
)

// PoolHealth is the assessment reported on the readiness probe.
type PoolHealth struct {
	Status      HealthStatus `json:"status"`
	Utilization float64      `json:"utilization"`
	Message     string       `json:"message,omitempty"`
	Stats       PoolStats    `json:"stats"`
}

// Assess grades pool utilization. Long cumulative waits degrade a healthy pool.
func Assess(stats PoolStats) PoolHealth {
	if stats.MaxOpen == 0 {
		return PoolHealth{Status: PoolHealthy, Message: "unlimited connections", Stats: stats}
	}

	utilization := float64(stats.InUse) / float64(stats.MaxOpen)

	h := PoolHealth{Status: PoolHealthy, Utilization: utilization, Message: "pool operating normally", Stats: stats}
	switch {
	case utilization >= 0.95:
		h.Status, h.Message = PoolUnhealthy, "pool nearly exhausted"
	case utilization >= 0.80:
		h.Status, h.Message = PoolDegraded, "high pool utilization"
	}

	if stats.WaitCount > 0 && stats.WaitDuration > 5*time.Second {
		if h.Status == PoolHealthy {
			h.Status = PoolDegraded
		}
		h.Message = "elevated connection wait times"
	}
	return h
}
