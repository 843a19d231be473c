package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/database"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/handler"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/service"
	"github.com/Shivanand-hulikatti/explore-with-me/internal/stats"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply the database schema before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()
	log := e.log

	if migrateOnStart && e.pool != nil {
		if err := database.Migrate(ctx, e.pool); err != nil {
			return err
		}
		log.Info().Msg("schema applied")
	}

	var upstream stats.Aggregator
	if e.cfg.Stats.URL != "" {
		upstream = stats.NewClient(e.cfg.Stats.URL, e.cfg.Stats.Timeout)
		log.Info().Str("url", e.cfg.Stats.URL).Msg("using remote stats service")
	} else {
		upstream = stats.NewMemory()
		log.Warn().Msg("stats.url is empty, counting views in process")
	}
	views, err := stats.NewCachedAggregator(upstream, e.cfg.Redis, log)
	if err != nil {
		return err
	}
	defer views.Close()
	recorder := stats.NewRecorder(views, e.cfg.Stats.Buffer, e.cfg.Stats.Workers, log)

	h := handler.New(
		service.NewEventService(e.store, views, recorder, e.cfg.Stats.App, log),
		service.NewRequestService(e.store, e.tracker, log),
		service.NewUserService(e.store, log),
		log,
	)
	srv := &http.Server{
		Addr:         e.cfg.Server.Address,
		Handler:      h.Router(),
		ReadTimeout:  e.cfg.Server.ReadTimeout,
		WriteTimeout: e.cfg.Server.WriteTimeout,
		IdleTimeout:  e.cfg.Server.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return recorder.Run(ctx)
	})

	if e.cfg.Reconcile.Enabled {
		reconciler := service.NewReconciler(e.store, e.tracker, log)
		g.Go(func() error {
			scheduler, err := gocron.NewScheduler()
			if err != nil {
				return err
			}
			_, err = scheduler.NewJob(
				gocron.DurationJob(e.cfg.Reconcile.Interval),
				gocron.NewTask(func() {
					if _, err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
						log.Error().Err(err).Msg("confirmed count reconciliation failed")
					}
				}),
				gocron.WithSingletonMode(gocron.LimitModeReschedule),
			)
			if err != nil {
				return err
			}
			log.Info().Dur("interval", e.cfg.Reconcile.Interval).Msg("reconciliation scheduled")
			scheduler.Start()

			<-ctx.Done()
			return scheduler.Shutdown()
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
