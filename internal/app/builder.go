// Package app wires configuration into a running puzzle server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-puzzle/internal/config"
	"github.com/park285/cheese-puzzle/internal/events"
	"github.com/park285/cheese-puzzle/internal/feed"
	"github.com/park285/cheese-puzzle/internal/httpapi"
	"github.com/park285/cheese-puzzle/internal/msgcat"
	"github.com/park285/cheese-puzzle/internal/puzzle"
	"github.com/park285/cheese-puzzle/internal/render"
	"github.com/park285/cheese-puzzle/internal/rewards"
	"github.com/park285/cheese-puzzle/internal/service/puzzles"
	"github.com/park285/cheese-puzzle/internal/sessionstore"
)

type Deps struct {
	Config   *config.AppConfig
	Service  *puzzles.Service
	Catalog  *msgcat.Catalog
	Feed     *feed.Client
	Store    *sessionstore.Store
	Postgres *rewards.PostgresLedger
	Tracker  *rewards.Tracker
	Hub      *events.Hub
	API      *httpapi.Server
	Events   *http.Server

	logger *zap.Logger
}

// New builds every component named by cfg. Redis and Postgres are optional:
// without them sessions live only in memory and rewards are kept in process.
func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{Config: cfg, logger: logger}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Catalog = cat

	var src puzzle.Source
	if cfg.PuzzleSource == config.SourceDaily {
		d.Feed = feed.NewClient(cfg.FeedBaseURL, feed.WithTimeout(cfg.FeedTimeout()))
		src = d.Feed
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := sessionstore.New(ctx, cfg.RedisURL, cfg.SessionTTL())
		cancel()
		if err != nil {
			return nil, fmt.Errorf("init session store: %w", err)
		}
		d.Store = store
	} else {
		logger.Warn("session_store_disabled", zap.String("reason", "REDIS_URL not set"))
	}

	var ledger rewards.Ledger
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := rewards.NewPostgresLedger(cfg.DatabaseURL)
		if err != nil {
			d.closeStores()
			return nil, fmt.Errorf("init rewards ledger: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pg.Migrate(ctx)
		cancel()
		if err != nil {
			_ = pg.Close()
			d.closeStores()
			return nil, err
		}
		d.Postgres = pg
		ledger = pg
	} else {
		logger.Warn("rewards_ledger_in_memory", zap.String("reason", "DATABASE_URL not set"))
		ledger = rewards.NewMemoryLedger()
	}
	d.Tracker = rewards.NewTracker(ledger, cfg.DailyQuota, logger.Named("rewards"))

	d.Hub = events.NewHub(logger.Named("events"))

	svc, err := puzzles.NewService(puzzles.Config{
		Source:          cfg.PuzzleSource,
		ReplyDelay:      cfg.ReplyDelay(),
		HintLimit:       cfg.HintLimit,
		HintVisibility:  cfg.HintVisibility(),
		SessionTTL:      cfg.SessionTTL(),
		VerifySolutions: cfg.VerifySolutions,
	}, puzzles.Deps{
		Feed:     src,
		Store:    d.Store,
		Tracker:  d.Tracker,
		Catalog:  cat,
		Renderer: render.New(),
		Publish:  d.Hub.Publish,
	}, logger.Named("puzzles"))
	if err != nil {
		d.closeStores()
		return nil, err
	}
	d.Service = svc

	d.API = httpapi.New(svc, cat, logger.Named("http"))

	mux := http.NewServeMux()
	mux.Handle("/events", d.Hub)
	d.Events = &http.Server{
		Addr:              cfg.EventsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return d, nil
}

// Run serves the API and the event socket until ctx ends, pruning idle
// sessions in the background.
func (d *Deps) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		d.logger.Info("http_listen", zap.String("addr", d.Config.HTTPAddr))
		errCh <- d.API.ListenAndServe(d.Config.HTTPAddr)
	}()
	go func() {
		d.logger.Info("events_listen", zap.String("addr", d.Config.EventsAddr))
		if err := d.Events.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			if n := d.Service.Prune(); n > 0 {
				d.logger.Info("sessions_pruned", zap.Int("count", n))
			}
		}
	}
}

// Shutdown stops listeners first, then sessions, then storage.
func (d *Deps) Shutdown(ctx context.Context) error {
	var errs []error
	if d.API != nil {
		errs = append(errs, d.API.Shutdown(ctx))
	}
	if d.Hub != nil {
		errs = append(errs, d.Hub.Close(ctx))
	}
	if d.Events != nil {
		errs = append(errs, d.Events.Shutdown(ctx))
	}
	if d.Service != nil {
		d.Service.Close()
	}
	errs = append(errs, d.closeStores())
	return errors.Join(errs...)
}

func (d *Deps) closeStores() error {
	var errs []error
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	if d.Postgres != nil {
		errs = append(errs, d.Postgres.Close())
	}
	return errors.Join(errs...)
}
