package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// sendTimeout bounds one delivery attempt of a queued hit.
const sendTimeout = 5 * time.Second

// Recorder delivers hits to an Aggregator in the background. Record never
// blocks: when the queue is full the hit is dropped and a warning logged.
type Recorder struct {
	agg     Aggregator
	queue   chan Hit
	workers int
	log     zerolog.Logger
}

// NewRecorder creates a recorder with a queue of buffer hits drained by
// workers goroutines once Run is called.
func NewRecorder(agg Aggregator, buffer, workers int, log zerolog.Logger) *Recorder {
	return &Recorder{
		agg:     agg,
		queue:   make(chan Hit, max(buffer, 1)),
		workers: max(workers, 1),
		log:     log,
	}
}

// Record queues hit for delivery.
func (r *Recorder) Record(hit Hit) {
	select {
	case r.queue <- hit:
	default:
		r.log.Warn().Str("uri", hit.URI).Msg("hit queue full, dropping hit")
	}
}

// Run delivers queued hits until ctx is done, then flushes what is left in
// the queue and returns.
func (r *Recorder) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range r.workers {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case hit := <-r.queue:
					r.send(hit)
				}
			}
		})
	}
	_ = g.Wait()
	r.flush()
	return nil
}

func (r *Recorder) flush() {
	for {
		select {
		case hit := <-r.queue:
			r.send(hit)
		default:
			return
		}
	}
}

func (r *Recorder) send(hit Hit) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := r.agg.RecordHit(ctx, hit); err != nil {
		r.log.Warn().Err(err).Str("uri", hit.URI).Msg("failed to record hit")
	}
}
