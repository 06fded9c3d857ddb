// Package admin exposes operator actions: manual resets and user statistics.
package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/usecase/reset"
)

// Service implements operator actions.
type Service struct {
	resetter Resetter
	counter  Counter
	admins   map[int64]struct{}
	logger   *zap.Logger
}

// New creates an admin service. adminIDs lists the Telegram users allowed to run admin commands.
func New(resetter Resetter, counter Counter, adminIDs []int64, logger *zap.Logger) *Service {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Service{resetter: resetter, counter: counter, admins: admins, logger: logger}
}

// IsAdmin reports whether id may run admin commands.
func (s *Service) IsAdmin(id int64) bool {
	_, ok := s.admins[id]
	return ok
}

// ResetAll refills every free user's allowance now.
func (s *Service) ResetAll(ctx context.Context) (int, error) {
	n, err := s.resetter.ResetAll(ctx, reset.TriggerAdmin)
	if err != nil {
		return 0, fmt.Errorf("manual reset: %w", err)
	}
	return n, nil
}

// UserCount returns the number of registered users.
func (s *Service) UserCount(ctx context.Context) (int, error) {
	n, err := s.counter.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
