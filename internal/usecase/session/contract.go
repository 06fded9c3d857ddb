package session

import (
	"context"

	domsession "github.com/kailas-cloud/tutorbot/internal/domain/session"
)

// Repository persists sessions.
type Repository interface {
	Get(ctx context.Context, userID int64) (domsession.Session, error)
	Save(ctx context.Context, userID int64, s domsession.Session) error
	Delete(ctx context.Context, userID int64) error
}
