// Package usermem keeps quota records in process memory.
// It backs database.driver=memory and the service tests.
package usermem

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domuser "github.com/kailas-cloud/tutorbot/internal/domain/user"
)

// Repo is a mutex-guarded user store with the same atomic primitives as the
// Redis and SQL stores.
type Repo struct {
	mu    sync.Mutex
	users map[int64]domuser.User
}

// New creates an empty store.
func New() *Repo {
	return &Repo{users: make(map[int64]domuser.User)}
}

// Ping always succeeds.
func (r *Repo) Ping(context.Context) error { return nil }

// Create inserts u unless a record with the same id exists.
func (r *Repo) Create(_ context.Context, u domuser.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID()]; ok {
		return false, nil
	}
	r.users[u.ID()] = u
	return true, nil
}

// Get loads a user by id.
func (r *Repo) Get(_ context.Context, id int64) (domuser.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domuser.User{}, domain.ErrNotFound
	}
	return u, nil
}

// RolloverAllowance refills the allowance if the last request predates dayStart.
func (r *Repo) RolloverAllowance(_ context.Context, id int64, dayStart, now time.Time, allowance int) (bool, error) {
	var applied bool
	err := r.update(id, func(u domuser.User) domuser.User {
		if u.LastRequestAt() >= dayStart.UnixMilli() {
			return u
		}
		applied = true
		return with(u, u.ReferralsCount(), allowance, u.PremiumExpiresAtMillis(), now.UnixMilli())
	})
	return applied, err
}

// ConsumeAllowance decrements the allowance if positive and stamps the request time.
func (r *Repo) ConsumeAllowance(_ context.Context, id int64, now time.Time) (int, bool, error) {
	var (
		remaining int
		consumed  bool
	)
	err := r.update(id, func(u domuser.User) domuser.User {
		if u.DailyAllowance() <= 0 {
			return u
		}
		consumed = true
		remaining = u.DailyAllowance() - 1
		return with(u, u.ReferralsCount(), remaining, u.PremiumExpiresAtMillis(), now.UnixMilli())
	})
	return remaining, consumed, err
}

// IncrementReferrals bumps the referral count and returns the new total.
func (r *Repo) IncrementReferrals(_ context.Context, id int64) (int, error) {
	var n int
	err := r.update(id, func(u domuser.User) domuser.User {
		n = u.ReferralsCount() + 1
		return with(u, n, u.DailyAllowance(), u.PremiumExpiresAtMillis(), u.LastRequestAt())
	})
	return n, err
}

// CompareAndSetPremium sets the premium expiry to next if it still equals prev.
func (r *Repo) CompareAndSetPremium(_ context.Context, id int64, prev, next time.Time) (bool, error) {
	var swapped bool
	err := r.update(id, func(u domuser.User) domuser.User {
		if u.PremiumExpiresAtMillis() != millis(prev) {
			return u
		}
		swapped = true
		return with(u, u.ReferralsCount(), u.DailyAllowance(), millis(next), u.LastRequestAt())
	})
	return swapped, err
}

// ResetAllowances sets the allowance of every user without active premium.
func (r *Repo) ResetAllowances(_ context.Context, allowance int, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for id, u := range r.users {
		if u.IsPremium(now) {
			continue
		}
		r.users[id] = with(u, u.ReferralsCount(), allowance, u.PremiumExpiresAtMillis(), u.LastRequestAt())
		n++
	}
	return n, nil
}

// Count returns the number of stored users.
func (r *Repo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *Repo) update(id int64, fn func(domuser.User) domuser.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.users[id] = fn(u)
	return nil
}

func with(u domuser.User, referrals, allowance int, premiumExpiresAt, lastRequestAt int64) domuser.User {
	return domuser.Reconstruct(
		u.ID(), u.DisplayName(), u.Handle(),
		referrals, allowance,
		premiumExpiresAt, u.JoinedAt(), lastRequestAt, u.ReferredBy(),
	)
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
