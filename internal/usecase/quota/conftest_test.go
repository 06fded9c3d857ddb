package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domquota "github.com/kailas-cloud/tutorbot/internal/domain/quota"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
	"github.com/kailas-cloud/tutorbot/internal/repository/usermem"
)

const testLimit = 10

var tz = time.FixedZone("UZT", 5*3600)

// manualClock is a settable clock.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// failingRepo fails every call with err.
type failingRepo struct{ err error }

func (f *failingRepo) Create(context.Context, user.User) (bool, error) { return false, f.err }
func (f *failingRepo) Get(context.Context, int64) (user.User, error)   { return user.User{}, f.err }
func (f *failingRepo) RolloverAllowance(context.Context, int64, time.Time, time.Time, int) (bool, error) {
	return false, f.err
}
func (f *failingRepo) ConsumeAllowance(context.Context, int64, time.Time) (int, bool, error) {
	return 0, false, f.err
}

func newTestService(t *testing.T, repo Repository) (*Service, *manualClock) {
	t.Helper()
	policy, err := domquota.NewPolicy(testLimit, tz)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	clock := &manualClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, tz)}
	return New(repo, policy, clock, 5, zap.NewNop()), clock
}

var _ domain.Clock = (*manualClock)(nil)

var _ Repository = (*usermem.Repo)(nil)
