package referral

import (
	"context"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/domain/user"
)

// Repository defines the storage contract for first contact.
type Repository interface {
	Create(ctx context.Context, u user.User) (bool, error)
	Get(ctx context.Context, id int64) (user.User, error)
	IncrementReferrals(ctx context.Context, id int64) (int, error)
}

// PremiumGranter extends a user's premium window.
type PremiumGranter interface {
	Grant(ctx context.Context, id int64, days int) (time.Time, error)
}
