package stats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/config"
)

func TestCachedAggregatorDisabledPassesThrough(t *testing.T) {
	agg := new(mockAggregator)
	q := ViewQuery{URIs: []string{"/events/1"}}
	agg.On("QueryViews", mock.Anything, q).Return(map[string]int64{"/events/1": 4}, nil).Twice()

	c, err := NewCachedAggregator(agg, config.RedisConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)

	for range 2 {
		views, err := c.QueryViews(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, int64(4), views["/events/1"])
	}
	agg.AssertExpectations(t)
	assert.NoError(t, c.Close())
}

func TestCachedAggregatorServesFromRedis(t *testing.T) {
	addr := os.Getenv("EWM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("EWM_TEST_REDIS_ADDR not set")
	}

	uri := "/events/" + uuid.NewString()
	q := ViewQuery{URIs: []string{uri}, Start: time.Unix(1_700_000_000, 0)}

	agg := new(mockAggregator)
	agg.On("QueryViews", mock.Anything, mock.Anything).Return(map[string]int64{uri: 9}, nil).Once()

	c, err := NewCachedAggregator(agg, config.RedisConfig{Enabled: true, Address: addr, TTL: time.Minute}, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	for range 3 {
		views, err := c.QueryViews(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, int64(9), views[uri])
	}
	agg.AssertExpectations(t)
}
