// Package session manages the tutor mode and short chat history of each user.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domsession "github.com/kailas-cloud/tutorbot/internal/domain/session"
)

// DefaultMaxHistory is the number of retained messages when none is configured.
const DefaultMaxHistory = 6

// Service owns the session lifecycle.
type Service struct {
	repo       Repository
	clock      domain.Clock
	maxHistory int
}

// New creates a session service. maxHistory <= 0 selects DefaultMaxHistory.
func New(repo Repository, clock domain.Clock, maxHistory int) *Service {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Service{repo: repo, clock: clock, maxHistory: maxHistory}
}

// Start resets the user to a fresh chat session.
func (s *Service) Start(ctx context.Context, userID int64) (domsession.Session, error) {
	sess := domsession.New(domsession.ModeChat, s.clock.Now())
	if err := s.repo.Save(ctx, userID, sess); err != nil {
		return domsession.Session{}, fmt.Errorf("start session %d: %w", userID, err)
	}
	return sess, nil
}

// Get returns the user's session, or a fresh chat session if none is stored.
func (s *Service) Get(ctx context.Context, userID int64) (domsession.Session, error) {
	sess, err := s.repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domsession.New(domsession.ModeChat, s.clock.Now()), nil
	}
	if err != nil {
		return domsession.Session{}, fmt.Errorf("get session %d: %w", userID, err)
	}
	return sess, nil
}

// SwitchMode changes the mode and clears history.
func (s *Service) SwitchMode(ctx context.Context, userID int64, mode domsession.Mode) (domsession.Session, error) {
	if !mode.IsValid() {
		return domsession.Session{}, fmt.Errorf("unknown mode: %q", mode)
	}
	cur, err := s.Get(ctx, userID)
	if err != nil {
		return domsession.Session{}, err
	}
	next := cur.WithMode(mode, s.clock.Now())
	if err := s.repo.Save(ctx, userID, next); err != nil {
		return domsession.Session{}, fmt.Errorf("switch mode %d: %w", userID, err)
	}
	return next, nil
}

// Record appends one exchange to the history, keeping the newest maxHistory messages.
func (s *Service) Record(ctx context.Context, userID int64, userText, reply string) error {
	cur, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	next := cur.Append(s.maxHistory, s.clock.Now(),
		domain.Message{Role: domain.RoleUser, Content: userText},
		domain.Message{Role: domain.RoleAssistant, Content: reply},
	)
	if err := s.repo.Save(ctx, userID, next); err != nil {
		return fmt.Errorf("record session %d: %w", userID, err)
	}
	return nil
}

// End drops the stored session.
func (s *Service) End(ctx context.Context, userID int64) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("end session %d: %w", userID, err)
	}
	return nil
}
