package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssess(t *testing.T) {
	tests := []struct {
		name  string
		stats PoolStats
		want  HealthStatus
	}{
		{"unlimited", PoolStats{InUse: 50}, PoolHealthy},
		{"normal", PoolStats{InUse: 2, MaxOpen: 10}, PoolHealthy},
		{"busy", PoolStats{InUse: 8, MaxOpen: 10}, PoolDegraded},
		{"exhausted", PoolStats{InUse: 10, MaxOpen: 10}, PoolUnhealthy},
		{"slow acquires", PoolStats{InUse: 1, MaxOpen: 10, WaitCount: 3, WaitDuration: 6 * time.Second}, PoolDegraded},
		{"exhausted and slow", PoolStats{InUse: 10, MaxOpen: 10, WaitCount: 3, WaitDuration: 6 * time.Second}, PoolUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Assess(tt.stats).Status)
		})
	}
}

func TestSQLStats_Nil(t *testing.T) {
	assert.Equal(t, PoolStats{}, SQLStats(nil))
	assert.Equal(t, PoolStats{}, PGXStats(nil))
}
