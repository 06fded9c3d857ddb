// Package session models the per-user tutor conversation state.
package session

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/domain"
)

// Mode selects the tutor persona.
type Mode string

// Tutor modes.
const (
	ModeChat      Mode = "chat"
	ModeTranslate Mode = "translate"
	ModeSpeak     Mode = "speak"
)

// IsValid checks if the mode is supported.
func (m Mode) IsValid() bool {
	return m == ModeChat || m == ModeTranslate || m == ModeSpeak
}

// ParseMode converts a stored or user-supplied mode. Empty means chat.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeChat, nil
	}
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown mode: %q", s)
	}
	return m, nil
}

// SystemPrompt returns the instruction sent ahead of the history.
func (m Mode) SystemPrompt() string {
	switch m {
	case ModeTranslate:
		return "You are a translator. Translate the text to Uzbek clearly and accurately."
	case ModeSpeak:
		return "You are an English teacher. Reply only in English. " +
			"Correct any mistakes briefly and encourage the learner."
	default:
		return "You are a helpful English tutor. " +
			"Answer questions clearly in the user's language (Uzbek or English)."
	}
}

// ImagePrompt is the instruction for photo messages.
const ImagePrompt = "Extract any text from this image and translate it to Uzbek."

// Session is a user's mode and recent history (immutable value object).
type Session struct {
	mode      Mode
	history   []domain.Message
	updatedAt int64
}

// New creates an empty session in mode.
func New(mode Mode, now time.Time) Session {
	if !mode.IsValid() {
		mode = ModeChat
	}
	return Session{mode: mode, updatedAt: now.UnixMilli()}
}

// Reconstruct creates a Session without validation (storage hydration).
func Reconstruct(mode Mode, history []domain.Message, updatedAt int64) Session {
	return Session{mode: mode, history: history, updatedAt: updatedAt}
}

// Mode returns the active mode.
func (s Session) Mode() Mode { return s.mode }

// UpdatedAt returns the last change in unix millis.
func (s Session) UpdatedAt() int64 { return s.updatedAt }

// History returns a copy of the retained turns, oldest first.
func (s Session) History() []domain.Message {
	out := make([]domain.Message, len(s.history))
	copy(out, s.history)
	return out
}

// WithMode switches mode and clears history.
func (s Session) WithMode(mode Mode, now time.Time) Session {
	return New(mode, now)
}

// Append adds turns and keeps at most limit of the newest ones.
func (s Session) Append(limit int, now time.Time, turns ...domain.Message) Session {
	h := make([]domain.Message, 0, len(s.history)+len(turns))
	h = append(h, s.history...)
	h = append(h, turns...)
	if limit >= 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return Session{mode: s.mode, history: h, updatedAt: now.UnixMilli()}
}

// Prompt builds the message list for a completion: system prompt, history, then text.
func (s Session) Prompt(text string) []domain.Message {
	msgs := make([]domain.Message, 0, len(s.history)+2)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: s.mode.SystemPrompt()})
	msgs = append(msgs, s.history...)
	return append(msgs, domain.Message{Role: domain.RoleUser, Content: text})
}
