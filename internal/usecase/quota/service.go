package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domquota "github.com/kailas-cloud/tutorbot/internal/domain/quota"
	"github.com/kailas-cloud/tutorbot/internal/domain/referral"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
	"github.com/kailas-cloud/tutorbot/internal/metrics"
)

// Profile is the user-facing view of quota state.
type Profile struct {
	UserID                 int64
	Premium                bool
	PremiumExpiresAt       time.Time
	AllowanceRemaining     int
	DailyLimit             int
	ReferralsCount         int
	ReferralsToNextPremium int
}

// Service gates requests on the daily allowance.
type Service struct {
	repo           Repository
	policy         domquota.Policy
	clock          domain.Clock
	referralsEvery int
	logger         *zap.Logger
}

// New creates a quota service. referralsEvery is only used for Profile.
func New(repo Repository, policy domquota.Policy, clock domain.Clock, referralsEvery int, logger *zap.Logger) *Service {
	return &Service{
		repo:           repo,
		policy:         policy,
		clock:          clock,
		referralsEvery: referralsEvery,
		logger:         logger,
	}
}

// CheckAndConsume loads or creates the user, applies the day rollover and evaluates
// the allowance. Nothing is spent here: call CommitConsumption after the work succeeds.
// An exhausted allowance is reported in the Decision, not as an error.
func (s *Service) CheckAndConsume(ctx context.Context, id int64, meta user.Meta) (domquota.Decision, error) {
	now := s.clock.Now()
	u, err := s.current(ctx, id, meta, now)
	if err != nil {
		return domquota.Decision{}, err
	}

	d := s.policy.Evaluate(u, now)
	metrics.QuotaDecisionsTotal.WithLabelValues(string(d.Reason)).Inc()
	if !d.Allowed {
		s.logger.Debug("daily limit reached", zap.Int64("user_id", id))
	}
	return d, nil
}

// CommitConsumption spends one request after successful work.
// Premium users are never charged. At zero the call is a no-op.
// Work that straddles midnight is charged to the new day's allowance.
func (s *Service) CommitConsumption(ctx context.Context, id int64) (int, error) {
	now := s.clock.Now()
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("get user %d: %w", id, err)
	}
	if u, err = s.rollover(ctx, u, now); err != nil {
		return 0, err
	}
	if u.IsPremium(now) {
		metrics.QuotaConsumptionsTotal.WithLabelValues("premium").Inc()
		return u.DailyAllowance(), nil
	}

	remaining, consumed, err := s.repo.ConsumeAllowance(ctx, id, now)
	if err != nil {
		return 0, fmt.Errorf("consume allowance %d: %w", id, err)
	}
	if !consumed {
		metrics.QuotaConsumptionsTotal.WithLabelValues("exhausted").Inc()
		s.logger.Warn("commit on exhausted allowance", zap.Int64("user_id", id))
		return 0, nil
	}
	metrics.QuotaConsumptionsTotal.WithLabelValues("consumed").Inc()
	return remaining, nil
}

// Profile returns the quota view of a user, creating the record if needed.
func (s *Service) Profile(ctx context.Context, id int64, meta user.Meta) (Profile, error) {
	now := s.clock.Now()
	u, err := s.current(ctx, id, meta, now)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{
		UserID:                 u.ID(),
		Premium:                u.IsPremium(now),
		AllowanceRemaining:     u.DailyAllowance(),
		DailyLimit:             s.policy.FreeDailyLimit(),
		ReferralsCount:         u.ReferralsCount(),
		ReferralsToNextPremium: referral.UntilNext(u.ReferralsCount(), s.referralsEvery),
	}
	if p.Premium {
		p.PremiumExpiresAt = u.PremiumExpiresAt()
	}
	return p, nil
}

// current returns the user's record with today's rollover applied.
func (s *Service) current(ctx context.Context, id int64, meta user.Meta, now time.Time) (user.User, error) {
	u, err := s.loadOrCreate(ctx, id, meta, now)
	if err != nil {
		return user.User{}, err
	}
	return s.rollover(ctx, u, now)
}

// rollover refills u's allowance when its last request predates today and
// returns the stored record.
func (s *Service) rollover(ctx context.Context, u user.User, now time.Time) (user.User, error) {
	if !s.policy.NeedsRollover(u, now) {
		return u, nil
	}

	id := u.ID()
	applied, err := s.repo.RolloverAllowance(ctx, id, s.policy.DayStart(now), now, s.policy.ResetAllowance())
	if err != nil {
		return user.User{}, fmt.Errorf("rollover %d: %w", id, err)
	}
	if applied {
		metrics.QuotaRolloversTotal.Inc()
		s.logger.Debug("daily allowance rolled over", zap.Int64("user_id", id))
	}

	// Re-read: a concurrent request may have rolled over and consumed already.
	u, err = s.repo.Get(ctx, id)
	if err != nil {
		return user.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (s *Service) loadOrCreate(ctx context.Context, id int64, meta user.Meta, now time.Time) (user.User, error) {
	u, err := s.repo.Get(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return user.User{}, fmt.Errorf("get user %d: %w", id, err)
	}

	fresh, err := user.New(id, meta, s.policy.ResetAllowance(), now)
	if err != nil {
		return user.User{}, err
	}
	created, err := s.repo.Create(ctx, fresh)
	if err != nil {
		return user.User{}, fmt.Errorf("create user %d: %w", id, err)
	}
	if created {
		s.logger.Info("user created", zap.Int64("user_id", id))
		return fresh, nil
	}

	u, err = s.repo.Get(ctx, id)
	if err != nil {
		return user.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}
