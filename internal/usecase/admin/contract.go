package admin

import (
	"context"

	"github.com/kailas-cloud/tutorbot/internal/usecase/reset"
)

// Resetter runs the bulk allowance reset.
type Resetter interface {
	ResetAll(ctx context.Context, trigger reset.Trigger) (int, error)
}

// Counter reports the number of known users.
type Counter interface {
	Count(ctx context.Context) (int, error)
}
