package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAggregator struct {
	mock.Mock
}

func (m *mockAggregator) RecordHit(ctx context.Context, hit Hit) error {
	return m.Called(ctx, hit).Error(0)
}

func (m *mockAggregator) QueryViews(ctx context.Context, q ViewQuery) (map[string]int64, error) {
	args := m.Called(ctx, q)
	views, _ := args.Get(0).(map[string]int64)
	return views, args.Error(1)
}

func TestRecorderDeliversQueuedHits(t *testing.T) {
	mem := NewMemory()
	r := NewRecorder(mem, 16, 2, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	for range 5 {
		r.Record(Hit{URI: "/events", IP: "1.1.1.1", Timestamp: time.Now()})
	}
	require.Eventually(t, func() bool { return len(mem.Hits()) == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRecorderFlushesOnShutdown(t *testing.T) {
	mem := NewMemory()
	r := NewRecorder(mem, 8, 1, zerolog.Nop())
	for range 3 {
		r.Record(Hit{URI: "/events"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
	assert.Len(t, mem.Hits(), 3)
}

func TestRecorderDropsWhenFull(t *testing.T) {
	mem := NewMemory()
	r := NewRecorder(mem, 2, 1, zerolog.Nop())
	for range 5 {
		r.Record(Hit{URI: "/events"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
	assert.Len(t, mem.Hits(), 2)
}

func TestRecorderSurvivesAggregatorFailure(t *testing.T) {
	agg := new(mockAggregator)
	agg.On("RecordHit", mock.Anything, mock.Anything).Return(errors.New("unavailable"))
	r := NewRecorder(agg, 4, 1, zerolog.Nop())
	r.Record(Hit{URI: "/events/x"})
	r.Record(Hit{URI: "/events/y"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
	agg.AssertNumberOfCalls(t, "RecordHit", 2)
}
