package reset

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domquota "github.com/kailas-cloud/tutorbot/internal/domain/quota"
)

// State is the scheduler lifecycle state.
type State int32

// Scheduler states.
const (
	StateIdle State = iota
	StateSleeping
	StateResetting
)

func (s State) String() string {
	switch s {
	case StateSleeping:
		return "sleeping"
	case StateResetting:
		return "resetting"
	default:
		return "idle"
	}
}

// Resetter performs one bulk reset.
type Resetter interface {
	ResetAll(ctx context.Context, trigger Trigger) (int, error)
}

// WaitFunc blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Scheduler fires a bulk reset at every local midnight.
type Scheduler struct {
	resetter Resetter
	policy   domquota.Policy
	clock    domain.Clock
	wait     WaitFunc
	logger   *zap.Logger
	state    atomic.Int32
}

// NewScheduler creates a scheduler that sleeps on real timers.
func NewScheduler(resetter Resetter, policy domquota.Policy, clock domain.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		resetter: resetter,
		policy:   policy,
		clock:    clock,
		wait:     sleep,
		logger:   logger,
	}
}

// WithWait replaces the sleep primitive.
func (s *Scheduler) WithWait(w WaitFunc) *Scheduler {
	s.wait = w
	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Run loops until ctx is cancelled. A failed reset is logged and the next
// midnight is scheduled as usual. Cancellation while sleeping has no side effects.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.state.Store(int32(StateIdle))

	var last time.Time
	for {
		now := s.clock.Now()
		base := now
		if last.After(base) {
			base = last
		}
		target := s.policy.NextMidnight(base)

		s.state.Store(int32(StateSleeping))
		s.logger.Debug("reset scheduled", zap.Time("at", target))
		if err := s.wait(ctx, target.Sub(now)); err != nil {
			s.logger.Info("reset scheduler stopped")
			return
		}

		s.state.Store(int32(StateResetting))
		if _, err := s.resetter.ResetAll(ctx, TriggerScheduler); err != nil {
			s.logger.Error("scheduled reset failed", zap.Error(err))
		}
		last = target
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d < 0 {
		d = 0
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
