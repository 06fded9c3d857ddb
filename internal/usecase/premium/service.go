package premium

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	dompremium "github.com/kailas-cloud/tutorbot/internal/domain/premium"
	"github.com/kailas-cloud/tutorbot/internal/metrics"
)

const defaultMaxAttempts = 5

// Service grants premium windows.
type Service struct {
	repo        Repository
	clock       domain.Clock
	maxAttempts int
	logger      *zap.Logger
}

// New creates a premium service.
func New(repo Repository, clock domain.Clock, logger *zap.Logger) *Service {
	return &Service{repo: repo, clock: clock, maxAttempts: defaultMaxAttempts, logger: logger}
}

// WithMaxAttempts overrides the compare-and-set retry budget.
func (s *Service) WithMaxAttempts(n int) *Service {
	if n > 0 {
		s.maxAttempts = n
	}
	return s
}

// Grant adds days of premium to user id and returns the new expiry.
// Every call adds one full duration; an active window is extended, not replaced.
func (s *Service) Grant(ctx context.Context, id int64, days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, fmt.Errorf("premium days must be positive, got %d", days)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		u, err := s.repo.Get(ctx, id)
		if err != nil {
			metrics.PremiumGrantsTotal.WithLabelValues("error").Inc()
			return time.Time{}, fmt.Errorf("get user %d: %w", id, err)
		}

		now := s.clock.Now()
		prev := u.PremiumExpiresAt()
		next := dompremium.Extend(prev, now, days)
		next = time.UnixMilli(next.UnixMilli())

		ok, err := s.repo.CompareAndSetPremium(ctx, id, prev, next)
		if err != nil {
			metrics.PremiumGrantsTotal.WithLabelValues("error").Inc()
			return time.Time{}, fmt.Errorf("set premium %d: %w", id, err)
		}
		if ok {
			metrics.PremiumGrantsTotal.WithLabelValues("granted").Inc()
			s.logger.Info("premium granted",
				zap.Int64("user_id", id),
				zap.Int("days", days),
				zap.Time("premium_until", next),
				zap.Bool("extended", dompremium.IsActive(prev, now)),
			)
			return next, nil
		}
		s.logger.Debug("premium grant raced, retrying", zap.Int64("user_id", id), zap.Int("attempt", attempt))
	}

	metrics.PremiumGrantsTotal.WithLabelValues("conflict").Inc()
	return time.Time{}, fmt.Errorf("grant premium %d after %d attempts: %w", id, s.maxAttempts, domain.ErrConflict)
}
