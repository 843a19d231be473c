package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts uint) LockPolicy {
	return LockPolicy{LockTimeout: 10 * time.Millisecond, MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestWithLockRetry(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		failures  int // contention failures before success
		other     error
		attempts  uint
		wantErr   error
		wantCalls int
	}{
		{name: "first try", failures: 0, attempts: 3, wantCalls: 1},
		{name: "recovers after contention", failures: 2, attempts: 3, wantCalls: 3},
		{name: "exhausted", failures: 5, attempts: 3, wantErr: ErrLockTimeout, wantCalls: 3},
		{name: "other errors are not retried", other: boom, attempts: 3, wantErr: boom, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := withLockRetry(context.Background(), fastPolicy(tt.attempts), zerolog.Nop(), "e1", func() error {
				calls++
				if tt.other != nil {
					return tt.other
				}
				if calls <= tt.failures {
					return errLockContention
				}
				return nil
			})
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestWithLockRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withLockRetry(ctx, fastPolicy(10), zerolog.Nop(), "e1", func() error {
		return errLockContention
	})
	require.Error(t, err)
}
