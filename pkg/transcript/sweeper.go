package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the retention sweep at the top of every hour.
const DefaultSweepSchedule = "0 * * * *"

// ListStore is a Store that can enumerate its sessions.
type ListStore interface {
	Store
	Lister
}

// Sweeper clears transcripts that have been idle longer than a TTL.
// Sessions reported active by the InUse callback are never touched.
type Sweeper struct {
	store  ListStore
	ttl    time.Duration
	inUse  func(sessionID string) bool
	now    func() time.Time
	cron   *cron.Cron
	logger *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithInUse excludes sessions for which fn returns true.
func WithInUse(fn func(sessionID string) bool) SweeperOption {
	return func(s *Sweeper) { s.inUse = fn }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// WithSweepLogger sets the logger.
func WithSweepLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = l }
}

// NewSweeper creates a sweeper over a listable store.
func NewSweeper(store ListStore, ttl time.Duration, opts ...SweeperOption) (*Sweeper, error) {
	if ttl <= 0 {
		return nil, errors.New("transcript: sweep ttl must be positive")
	}
	s := &Sweeper{
		store:  store,
		ttl:    ttl,
		inUse:  func(string) bool { return false },
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "transcript.sweeper")
	return s, nil
}

// Sweep clears every expired session once and returns the cleared ids.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	infos, err := s.store.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.ttl)
	var cleared []string
	for _, info := range infos {
		if !info.UpdatedAt.Before(cutoff) || s.inUse(info.ID) {
			continue
		}
		if err := s.store.Clear(ctx, info.ID); err != nil {
			return cleared, fmt.Errorf("transcript: sweep %s: %w", info.ID, err)
		}
		cleared = append(cleared, info.ID)
	}

	if len(cleared) > 0 {
		s.logger.Info("expired transcripts cleared", "count", len(cleared), "ttl", s.ttl)
	}
	return cleared, nil
}

// Start schedules Sweep on a cron schedule (DefaultSweepSchedule if empty).
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	s.cron = cron.New(cron.WithLocation(time.UTC))
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Warn("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("transcript: schedule sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("retention sweep scheduled", "schedule", schedule, "ttl", s.ttl)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
