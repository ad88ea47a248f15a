// Package sweeper runs the scheduled journal sweep and persists snapshots of
// the ledger whenever its state changed since the last save.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ftledger/internal/token/metrics"
	"ftledger/internal/token/ports"
)

// Sweeper is a cron-driven job over a SnapshotSource.
type Sweeper struct {
	source  ports.SnapshotSource
	store   ports.SnapshotStore
	backend string
	timeout time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	lastSaved uint64
	saved     bool
	onSaved   func(ctx context.Context, version uint64)

	cron *cron.Cron
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithStore enables snapshots. backend labels the save metrics.
func WithStore(store ports.SnapshotStore, backend string) Option {
	return func(s *Sweeper) {
		s.store = store
		s.backend = backend
	}
}

// WithSavedVersion marks version v as already persisted, used after a
// restore so the first run does not rewrite the snapshot it started from.
func WithSavedVersion(v uint64) Option {
	return func(s *Sweeper) {
		s.lastSaved = v
		s.saved = true
	}
}

// WithOnSaved registers fn to learn the newest durable version after every
// run that has one, including runs that found nothing new to save. The
// Kafka runner uses it to commit offsets only for persisted effects.
func WithOnSaved(fn func(ctx context.Context, version uint64)) Option {
	return func(s *Sweeper) {
		s.onSaved = fn
	}
}

// WithRunTimeout bounds a single scheduled run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		s.timeout = d
	}
}

// New constructs a Sweeper.
func New(source ports.SnapshotSource, opts ...Option) (*Sweeper, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	s := &Sweeper{
		source:  source,
		timeout: 30 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunOnce sweeps expired journal records, then saves a snapshot if the
// state revision moved since the last successful save.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.source.Sweep(ctx)
	s.logger.DebugContext(ctx, "sweep finished", "removed", removed)

	if s.store == nil {
		return nil
	}
	if s.saved && s.source.Version() == s.lastSaved {
		s.notifySaved(ctx)
		return nil
	}

	snap := s.source.Snapshot()
	if err := s.store.Save(ctx, snap); err != nil {
		s.metrics.IncrementSnapshot(s.backend, "error")
		s.logger.ErrorContext(ctx, "snapshot save failed",
			"backend", s.backend,
			"version", snap.Version,
			"error", err,
		)
		return fmt.Errorf("save snapshot %d: %w", snap.Version, err)
	}
	s.metrics.IncrementSnapshot(s.backend, "ok")
	s.lastSaved = snap.Version
	s.saved = true
	s.logger.InfoContext(ctx, "snapshot saved",
		"backend", s.backend,
		"version", snap.Version,
	)
	s.notifySaved(ctx)
	return nil
}

func (s *Sweeper) notifySaved(ctx context.Context) {
	if s.onSaved != nil {
		s.onSaved(ctx, s.lastSaved)
	}
}

// Start schedules RunOnce on the cron spec (standard five fields or
// descriptors such as "@every 30s").
func (s *Sweeper) Start(spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop waits for a running job to finish, then flushes a final snapshot.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron != nil {
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.RunOnce(ctx)
}

// Run starts the schedule and blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, spec string, shutdownTimeout time.Duration) error {
	if err := s.Start(spec); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return s.Stop(stopCtx)
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	// Failures are logged in RunOnce and retried on the next tick.
	_ = s.RunOnce(ctx)
}
