package quota

import (
	"context"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/domain/user"
)

// Repository defines the storage contract for the quota path.
// Every mutating method is a single atomic operation in the store.
type Repository interface {
	Create(ctx context.Context, u user.User) (bool, error)
	Get(ctx context.Context, id int64) (user.User, error)
	RolloverAllowance(ctx context.Context, id int64, dayStart, now time.Time, allowance int) (bool, error)
	ConsumeAllowance(ctx context.Context, id int64, now time.Time) (int, bool, error)
}
