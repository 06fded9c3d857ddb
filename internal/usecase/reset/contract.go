package reset

import (
	"context"
	"time"
)

// Repository applies the bulk allowance reset.
type Repository interface {
	ResetAllowances(ctx context.Context, allowance int, now time.Time) (int, error)
}
