// Package tutor answers learner messages through the completion provider,
// spending one request of the daily allowance per successful answer.
package tutor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domquota "github.com/kailas-cloud/tutorbot/internal/domain/quota"
	domsession "github.com/kailas-cloud/tutorbot/internal/domain/session"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
)

// ErrNotSpeakMode is returned for voice messages outside speak mode.
var ErrNotSpeakMode = errors.New("voice messages require speak mode")

// Answer is a tutor reply with the allowance left after it.
type Answer struct {
	Text      string
	Remaining int
	Premium   bool
}

// Service runs the check, complete, commit cycle.
type Service struct {
	quota     QuotaGate
	sessions  Sessions
	completer domain.Completer
	logger    *zap.Logger
}

// New creates a tutor service.
func New(quota QuotaGate, sessions Sessions, completer domain.Completer, logger *zap.Logger) *Service {
	return &Service{quota: quota, sessions: sessions, completer: completer, logger: logger}
}

// Ask answers text in the user's current mode. Returns domain.ErrLimitReached
// when the allowance is exhausted. A failed completion is not charged.
func (s *Service) Ask(ctx context.Context, id int64, meta user.Meta, text string) (Answer, error) {
	d, err := s.admit(ctx, id, meta)
	if err != nil {
		return Answer{}, err
	}

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Answer{}, err
	}
	res, err := s.completer.Complete(ctx, sess.Prompt(text))
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}

	if err := s.sessions.Record(ctx, id, text, res.Text); err != nil {
		s.logger.Warn("session record failed", zap.Int64("user_id", id), zap.Error(err))
	}
	return s.commit(ctx, id, d, res.Text), nil
}

// DescribeImage extracts and translates the text of the image at imageURL.
func (s *Service) DescribeImage(ctx context.Context, id int64, meta user.Meta, imageURL string) (Answer, error) {
	d, err := s.admit(ctx, id, meta)
	if err != nil {
		return Answer{}, err
	}

	res, err := s.completer.DescribeImage(ctx, domsession.ImagePrompt, imageURL)
	if err != nil {
		return Answer{}, fmt.Errorf("describe image: %w", err)
	}
	return s.commit(ctx, id, d, res.Text), nil
}

// Voice accepts a voice message. It only checks the allowance: nothing is
// transcribed, so nothing is charged.
func (s *Service) Voice(ctx context.Context, id int64, meta user.Meta) error {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Mode() != domsession.ModeSpeak {
		return ErrNotSpeakMode
	}
	_, err = s.admit(ctx, id, meta)
	return err
}

func (s *Service) admit(ctx context.Context, id int64, meta user.Meta) (domquota.Decision, error) {
	d, err := s.quota.CheckAndConsume(ctx, id, meta)
	if err != nil {
		return domquota.Decision{}, err
	}
	if !d.Allowed {
		return d, domain.ErrLimitReached
	}
	return d, nil
}

func (s *Service) commit(ctx context.Context, id int64, d domquota.Decision, text string) Answer {
	if d.Premium {
		return Answer{Text: text, Remaining: d.Remaining, Premium: true}
	}
	remaining, err := s.quota.CommitConsumption(ctx, id)
	if err != nil {
		// The answer is already produced; deliver it uncharged.
		s.logger.Error("commit consumption failed", zap.Int64("user_id", id), zap.Error(err))
		remaining = d.Remaining
	}
	return Answer{Text: text, Remaining: remaining}
}
