package contactimport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSettleAll_CollectsEveryOutcome(t *testing.T) {
	boom := errors.New("boom")
	tasks := []func(context.Context) (int, error){
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (int, error) { return 0, boom },
		func(context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 3, nil
		},
	}

	results := SettleAll(context.Background(), 0, tasks)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].Value)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, 3, results[2].Value, "a failing sibling does not cancel later tasks")
	assert.NoError(t, results[2].Err)
}

func TestSettleAll_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	tasks := make([]func(context.Context) (struct{}, error), 20)
	for i := range tasks {
		tasks[i] = func(context.Context) (struct{}, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}, nil
		}
	}

	SettleAll(context.Background(), 3, tasks)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Zero(t, inFlight.Load())
}

func TestSettleAll_Empty(t *testing.T) {
	assert.Empty(t, SettleAll[int](context.Background(), 4, nil))
}
