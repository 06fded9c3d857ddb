package tutor

import (
	"context"

	domquota "github.com/kailas-cloud/tutorbot/internal/domain/quota"
	domsession "github.com/kailas-cloud/tutorbot/internal/domain/session"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
)

// QuotaGate checks and spends the daily allowance.
type QuotaGate interface {
	CheckAndConsume(ctx context.Context, id int64, meta user.Meta) (domquota.Decision, error)
	CommitConsumption(ctx context.Context, id int64) (int, error)
}

// Sessions reads and updates the tutor session.
type Sessions interface {
	Get(ctx context.Context, userID int64) (domsession.Session, error)
	Record(ctx context.Context, userID int64, userText, reply string) error
}
