package premium

import (
	"context"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/domain/user"
)

// Repository defines the storage contract for premium grants.
type Repository interface {
	Get(ctx context.Context, id int64) (user.User, error)
	CompareAndSetPremium(ctx context.Context, id int64, prev, next time.Time) (bool, error)
}
