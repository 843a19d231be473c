package repository

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/config"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/database"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/model"
)

// newPostgres connects to EWM_TEST_DATABASE_DSN and applies the schema. The
// test is skipped when the variable is unset.
func newPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("EWM_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("EWM_TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()
	pool, err := database.NewPool(ctx, config.DatabaseConfig{
		Driver:          "postgres",
		DSN:             dsn,
		MaxConns:        20,
		MinConns:        1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		ConnectAttempts: 1,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))

	return NewPostgresStore(pool, LockPolicy{
		LockTimeout:    500 * time.Millisecond,
		MaxAttempts:    10,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
	}, zerolog.Nop())
}

func TestPostgresReserveSlotUnderContention(t *testing.T) {
	s := newPostgres(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	e := seedEvent(t, s, owner.ID, func(e *model.Event) {
		e.State = model.EventPublished
		e.ParticipantLimit = 3
		e.RequestModeration = false
	})

	var admitted atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for range 12 {
		requester := seedUser(t, s)
		g.Go(func() error {
			return s.WithEventLock(gctx, e.ID, func(tx EventTx) error {
				ok, err := tx.ReserveSlot(gctx)
				if err != nil || !ok {
					return err
				}
				admitted.Add(1)
				return tx.InsertRequest(gctx, &model.ParticipationRequest{
					ID:          uuid.NewString(),
					EventID:     e.ID,
					RequesterID: requester.ID,
					Status:      model.RequestConfirmed,
					CreatedAt:   time.Now(),
				})
			})
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 3, admitted.Load())
	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ConfirmedCount)

	drift, err := s.EventIDsWithCountDrift(ctx)
	require.NoError(t, err)
	assert.NotContains(t, drift, e.ID)
}

func TestPostgresDuplicateActiveRequest(t *testing.T) {
	s := newPostgres(t)
	ctx := context.Background()
	owner := seedUser(t, s)
	requester := seedUser(t, s)
	e := seedEvent(t, s, owner.ID, func(e *model.Event) { e.State = model.EventPublished })

	insert := func() error {
		return s.WithEventLock(ctx, e.ID, func(tx EventTx) error {
			return tx.InsertRequest(ctx, &model.ParticipationRequest{
				ID:          uuid.NewString(),
				EventID:     e.ID,
				RequesterID: requester.ID,
				Status:      model.RequestPending,
				CreatedAt:   time.Now(),
			})
		})
	}
	require.NoError(t, insert())
	assert.ErrorIs(t, insert(), ErrDuplicate)
}

func TestPostgresMissingEvent(t *testing.T) {
	s := newPostgres(t)
	err := s.WithEventLock(context.Background(), uuid.NewString(), func(EventTx) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}
