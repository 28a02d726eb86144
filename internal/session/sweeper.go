package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepHandler receives idle and expired sessions found by the sweeper.
// Implementations must serialize the resulting mutation with any in-flight
// turn for the same sender; the sweeper itself never mutates the store.
type SweepHandler interface {
	// WarnIdle asks for a one-time idle warning to be sent to the sender.
	WarnIdle(senderID string)
	// Expire asks for the session to be evicted silently.
	Expire(senderID string)
}

// Sweeper periodically scans the store for sessions past the idle-warning
// threshold or the hard TTL.
type Sweeper struct {
	logger    *slog.Logger
	store     Store
	handler   SweepHandler
	warnAfter time.Duration
	ttl       time.Duration
	spec      string
	cron      *cron.Cron
}

// NewSweeper builds a sweeper on a cron spec (e.g. "@every 1m").
func NewSweeper(log *slog.Logger, store Store, handler SweepHandler, warnAfter, ttl time.Duration, spec string) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if spec == "" {
		spec = "@every 1m"
	}
	return &Sweeper{
		logger:    log.With(slog.String("service", "session_sweeper")),
		store:     store,
		handler:   handler,
		warnAfter: warnAfter,
		ttl:       ttl,
		spec:      spec,
	}
}

// Start schedules the sweep. Returns an error only for an invalid spec.
func (s *Sweeper) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.Sweep(context.Background(), time.Now()) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep performs one scan. Exported so tests can drive it with a fixed clock.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("list sessions failed", slog.Any("error", err))
		return
	}
	for _, sess := range sessions {
		idle := sess.IdleSince(now)
		switch {
		case idle >= s.ttl:
			s.logger.Info("session expired", slog.String("sender", sess.SenderID), slog.Duration("idle", idle))
			s.handler.Expire(sess.SenderID)
		case idle >= s.warnAfter && !sess.WarnedIdle:
			s.logger.Info("session idle, warning", slog.String("sender", sess.SenderID), slog.Duration("idle", idle))
			s.handler.WarnIdle(sess.SenderID)
		}
	}
}
