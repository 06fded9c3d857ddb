// Package reset refills free allowances in bulk, on a daily schedule or on demand.
package reset

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domquota "github.com/kailas-cloud/tutorbot/internal/domain/quota"
	"github.com/kailas-cloud/tutorbot/internal/metrics"
)

// Trigger names what started a reset.
type Trigger string

// Reset triggers.
const (
	TriggerScheduler Trigger = "scheduler"
	TriggerAdmin     Trigger = "admin"
)

// Service runs the bulk reset.
type Service struct {
	repo   Repository
	policy domquota.Policy
	clock  domain.Clock
	logger *zap.Logger
}

// NewService creates a reset service.
func NewService(repo Repository, policy domquota.Policy, clock domain.Clock, logger *zap.Logger) *Service {
	return &Service{repo: repo, policy: policy, clock: clock, logger: logger}
}

// ResetAll sets every non-premium user's allowance to the policy reset value
// and returns how many users were touched.
func (s *Service) ResetAll(ctx context.Context, trigger Trigger) (int, error) {
	start := s.clock.Now()
	n, err := s.repo.ResetAllowances(ctx, s.policy.ResetAllowance(), start)
	if err != nil {
		metrics.ResetRunsTotal.WithLabelValues(string(trigger), "error").Inc()
		return n, fmt.Errorf("reset allowances: %w", err)
	}

	metrics.ResetRunsTotal.WithLabelValues(string(trigger), "success").Inc()
	metrics.ResetUsersTotal.Add(float64(n))
	metrics.ResetLastSuccessTimestamp.Set(float64(start.Unix()))
	s.logger.Info("allowances reset",
		zap.String("trigger", string(trigger)),
		zap.Int("reset_users", n),
		zap.Duration("duration", time.Since(start)),
	)
	return n, nil
}
