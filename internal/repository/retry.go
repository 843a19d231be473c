package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/config"
)

// errLockContention marks an attempt that lost the race for an event lock
// and may be retried.
var errLockContention = errors.New("lock contention")

// LockPolicy bounds lock waits and retries.
type LockPolicy struct {
	LockTimeout    time.Duration
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// PolicyFromConfig converts the locking section of the configuration.
func PolicyFromConfig(cfg config.LockingConfig) LockPolicy {
	return LockPolicy{
		LockTimeout:    cfg.LockTimeout,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}
}

// DefaultLockPolicy is used by tests and the memory store when nothing is
// configured.
func DefaultLockPolicy() LockPolicy {
	return LockPolicy{
		LockTimeout:    2 * time.Second,
		MaxAttempts:    4,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
	}
}

// withLockRetry runs attempt until it succeeds, fails with an error other
// than lock contention, or the attempts are exhausted.
func withLockRetry(ctx context.Context, p LockPolicy, log zerolog.Logger, eventID string, attempt func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff

	tries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		err := attempt()
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, errLockContention):
			log.Debug().Str("event_id", eventID).Int("attempt", tries).Msg("event lock contended, backing off")
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(max(p.MaxAttempts, 1)))

	if errors.Is(err, errLockContention) {
		log.Warn().Str("event_id", eventID).Int("attempts", tries).Msg("event lock not acquired")
		return fmt.Errorf("%w: event %s", ErrLockTimeout, eventID)
	}
	return err
}
