package referral

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domref "github.com/kailas-cloud/tutorbot/internal/domain/referral"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
	"github.com/kailas-cloud/tutorbot/internal/metrics"
)

// Config holds the referral reward parameters.
type Config struct {
	FreeDailyLimit      int
	ReferralsForPremium int
	PremiumDays         int
}

// FirstContactResult reports what happened on a user's first contact.
type FirstContactResult struct {
	IsNewUser bool
	User      user.User
	Referral  domref.Outcome
}

// Service onboards users and rewards their referrers.
type Service struct {
	repo    Repository
	premium PremiumGranter
	clock   domain.Clock
	cfg     Config
	logger  *zap.Logger
}

// New creates a referral service.
func New(repo Repository, premium PremiumGranter, clock domain.Clock, cfg Config, logger *zap.Logger) *Service {
	return &Service{repo: repo, premium: premium, clock: clock, cfg: cfg, logger: logger}
}

// OnFirstContact creates the user if absent and attributes it to the referrer named by param.
// A bad referral never blocks onboarding: the user is created without a referrer.
// The referrer's count is bumped with one atomic increment; crossing a multiple of
// ReferralsForPremium grants PremiumDays of premium exactly once.
func (s *Service) OnFirstContact(ctx context.Context, id int64, meta user.Meta, param string) (FirstContactResult, error) {
	now := s.clock.Now()
	u, err := user.New(id, meta, s.cfg.FreeDailyLimit, now)
	if err != nil {
		return FirstContactResult{}, err
	}

	existing, err := s.repo.Get(ctx, id)
	switch {
	case err == nil:
		return FirstContactResult{User: existing, Referral: domref.Outcome{Kind: domref.KindNone}}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return FirstContactResult{}, fmt.Errorf("get user %d: %w", id, err)
	}

	u, outcome := s.attach(ctx, u, param)

	created, err := s.repo.Create(ctx, u)
	if err != nil {
		return FirstContactResult{}, fmt.Errorf("create user %d: %w", id, err)
	}
	if !created {
		// Lost the race to a concurrent first contact; that one owns the referral.
		existing, err := s.repo.Get(ctx, id)
		if err != nil {
			return FirstContactResult{}, fmt.Errorf("get user %d: %w", id, err)
		}
		return FirstContactResult{User: existing, Referral: domref.Outcome{Kind: domref.KindNone}}, nil
	}
	s.logger.Info("user created", zap.Int64("user_id", id), zap.Int64("referrer_id", u.ReferredBy()))

	if u.HasReferrer() {
		outcome = s.reward(ctx, u.ReferredBy())
	}
	metrics.ReferralOutcomesTotal.WithLabelValues(string(outcome.Kind)).Inc()

	return FirstContactResult{IsNewUser: true, User: u, Referral: outcome}, nil
}

// attach validates the referral parameter and returns u with its referrer set when valid.
func (s *Service) attach(ctx context.Context, u user.User, param string) (user.User, domref.Outcome) {
	if param == "" {
		return u, domref.Outcome{Kind: domref.KindNone}
	}
	referrer, ok := domref.ParseParam(param)
	if !ok {
		return u, domref.Outcome{Kind: domref.KindInvalid}
	}

	attributed, err := u.WithReferrer(referrer)
	if err != nil {
		s.logger.Debug("referral rejected", zap.Int64("user_id", u.ID()), zap.Error(err))
		return u, domref.Outcome{Kind: domref.KindInvalid, ReferrerID: referrer}
	}

	if _, err := s.repo.Get(ctx, referrer); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return u, domref.Outcome{Kind: domref.KindInvalid, ReferrerID: referrer}
		}
		s.logger.Warn("referrer lookup failed", zap.Int64("referrer_id", referrer), zap.Error(err))
		return u, domref.Outcome{Kind: domref.KindSkipped, ReferrerID: referrer}
	}
	return attributed, domref.Outcome{Kind: domref.KindNone}
}

// reward bumps the referrer's count and grants premium on a threshold.
// Failures here under-count but never undo the new user.
func (s *Service) reward(ctx context.Context, referrer int64) domref.Outcome {
	n, err := s.repo.IncrementReferrals(ctx, referrer)
	if err != nil {
		s.logger.Error("referral increment failed", zap.Int64("referrer_id", referrer), zap.Error(err))
		return domref.Outcome{Kind: domref.KindSkipped, ReferrerID: referrer}
	}

	out := domref.Outcome{Kind: domref.KindCounted, ReferrerID: referrer, Count: n}
	if !domref.ThresholdReached(n, s.cfg.ReferralsForPremium) {
		s.logger.Info("referral counted", zap.Int64("referrer_id", referrer), zap.Int("count", n))
		return out
	}

	until, err := s.premium.Grant(ctx, referrer, s.cfg.PremiumDays)
	if err != nil {
		s.logger.Error("premium grant failed",
			zap.Int64("referrer_id", referrer), zap.Int("count", n), zap.Error(err))
		return out
	}
	out.Kind = domref.KindPremiumEarned
	out.PremiumUntil = until
	return out
}
