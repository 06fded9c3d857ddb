// Package session persists tutor sessions in a key-value store with a TTL.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/db"
	"github.com/kailas-cloud/tutorbot/internal/domain"
	domsession "github.com/kailas-cloud/tutorbot/internal/domain/session"
)

// store is the consumer interface for sessions (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// sessionRow is the JSON form stored under "{prefix}session:{id}".
type sessionRow struct {
	Mode      string           `json:"mode"`
	History   []domain.Message `json:"history"`
	UpdatedAt int64            `json:"updated_at"`
}

// Repo stores sessions in Redis/Valkey. Idle sessions expire after ttl.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a session repository.
func New(s store, prefix string, ttl time.Duration) *Repo {
	return &Repo{store: s, prefix: prefix, ttl: ttl}
}

// Get loads a session. Returns domain.ErrNotFound if absent or expired.
func (r *Repo) Get(ctx context.Context, userID int64) (domsession.Session, error) {
	data, err := r.store.Get(ctx, r.key(userID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsession.Session{}, domain.ErrNotFound
		}
		return domsession.Session{}, domain.NewStoreError("get session", err)
	}

	var row sessionRow
	if err := json.Unmarshal(data, &row); err != nil {
		return domsession.Session{}, fmt.Errorf("unmarshal session %d: %w", userID, err)
	}
	mode, err := domsession.ParseMode(row.Mode)
	if err != nil {
		return domsession.Session{}, fmt.Errorf("session %d: %w", userID, err)
	}
	return domsession.Reconstruct(mode, row.History, row.UpdatedAt), nil
}

// Save writes a session and refreshes its TTL.
func (r *Repo) Save(ctx context.Context, userID int64, s domsession.Session) error {
	data, err := json.Marshal(sessionRow{
		Mode:      string(s.Mode()),
		History:   s.History(),
		UpdatedAt: s.UpdatedAt(),
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.store.SetWithTTL(ctx, r.key(userID), data, r.ttl); err != nil {
		return domain.NewStoreError("save session", err)
	}
	return nil
}

// Delete removes a session.
func (r *Repo) Delete(ctx context.Context, userID int64) error {
	if err := r.store.Del(ctx, r.key(userID)); err != nil {
		return domain.NewStoreError("delete session", err)
	}
	return nil
}

func (r *Repo) key(userID int64) string {
	return fmt.Sprintf("%ssession:%d", r.prefix, userID)
}
