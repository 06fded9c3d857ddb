// Package user persists quota records as Redis/Valkey hashes.
package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/db"
	"github.com/kailas-cloud/tutorbot/internal/domain"
	domuser "github.com/kailas-cloud/tutorbot/internal/domain/user"
)

const resetBatchSize = 500

// store is the consumer interface for user records (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Run(ctx context.Context, script *db.Script, keys []string, args ...string) (int64, error)
	RunMulti(ctx context.Context, script *db.Script, calls []db.ScriptCall) ([]int64, error)
}

// Repo implements the user store consumed by the quota, premium, referral and admin services.
type Repo struct {
	store  store
	prefix string
}

// New creates a user repository. Keys are "{prefix}user:{id}".
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Create inserts u unless a record with the same id exists.
func (r *Repo) Create(ctx context.Context, u domuser.User) (bool, error) {
	n, err := r.store.Run(ctx, createScript, []string{r.key(u.ID())}, userToArgs(u)...)
	if err != nil {
		return false, storeErr("create", err)
	}
	return n == 1, nil
}

// Get loads a user by id.
func (r *Repo) Get(ctx context.Context, id int64) (domuser.User, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domuser.User{}, storeErr("get", err)
	}
	if len(m) == 0 {
		return domuser.User{}, domain.ErrNotFound
	}
	u, err := userFromHash(m)
	if err != nil {
		return domuser.User{}, fmt.Errorf("parse user %d: %w", id, err)
	}
	return u, nil
}

// RolloverAllowance refills the allowance if the last request predates dayStart.
func (r *Repo) RolloverAllowance(
	ctx context.Context, id int64, dayStart, now time.Time, allowance int,
) (bool, error) {
	n, err := r.store.Run(ctx, rolloverScript, []string{r.key(id)},
		millis(dayStart), millis(now), strconv.Itoa(allowance))
	if err != nil {
		return false, storeErr("rollover", err)
	}
	return n == 1, nil
}

// ConsumeAllowance decrements the allowance if positive and stamps the request time.
// Returns the remaining allowance and whether anything was consumed.
func (r *Repo) ConsumeAllowance(ctx context.Context, id int64, now time.Time) (int, bool, error) {
	n, err := r.store.Run(ctx, consumeScript, []string{r.key(id)}, millis(now))
	if err != nil {
		return 0, false, storeErr("consume", err)
	}
	if n < 0 {
		return 0, false, nil
	}
	return int(n), true, nil
}

// IncrementReferrals bumps the referral count and returns the new total.
func (r *Repo) IncrementReferrals(ctx context.Context, id int64) (int, error) {
	n, err := r.store.Run(ctx, incrementReferralsScript, []string{r.key(id)})
	if err != nil {
		return 0, storeErr("increment referrals", err)
	}
	return int(n), nil
}

// CompareAndSetPremium sets the premium expiry to next if it still equals prev.
// Zero means absent.
func (r *Repo) CompareAndSetPremium(ctx context.Context, id int64, prev, next time.Time) (bool, error) {
	n, err := r.store.Run(ctx, casPremiumScript, []string{r.key(id)},
		optionalInt(unixMilli(prev)), optionalInt(unixMilli(next)))
	if err != nil {
		return false, storeErr("cas premium", err)
	}
	return n == 1, nil
}

// ResetAllowances sets the allowance of every user without active premium.
// Each user is reset atomically; the sweep as a whole is not a snapshot.
func (r *Repo) ResetAllowances(ctx context.Context, allowance int, now time.Time) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"user:*")
	if err != nil {
		return 0, storeErr("scan users", err)
	}

	args := []string{strconv.Itoa(allowance), millis(now)}
	var total int
	for start := 0; start < len(keys); start += resetBatchSize {
		end := min(start+resetBatchSize, len(keys))
		calls := make([]db.ScriptCall, 0, end-start)
		for _, k := range keys[start:end] {
			calls = append(calls, db.ScriptCall{Keys: []string{k}, Args: args})
		}
		results, err := r.store.RunMulti(ctx, resetScript, calls)
		if err != nil {
			return total, storeErr("reset allowances", err)
		}
		for _, n := range results {
			total += int(n)
		}
	}
	return total, nil
}

// Count returns the number of stored users.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"user:*")
	if err != nil {
		return 0, storeErr("scan users", err)
	}
	return len(keys), nil
}

func (r *Repo) key(id int64) string {
	return fmt.Sprintf("%suser:%d", r.prefix, id)
}

// storeErr maps a db failure to the domain taxonomy.
func storeErr(op string, err error) error {
	if errors.Is(err, db.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	return domain.NewStoreError(op, err)
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
