// Package user defines the per-user quota record and its invariants.
package user

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	"github.com/kailas-cloud/tutorbot/internal/domain/premium"
)

// Meta is optional display metadata reported by the messaging platform.
type Meta struct {
	DisplayName string
	Handle      string
}

// User is the per-user quota record (immutable value object).
// Timestamps are unix millis; zero means absent.
type User struct {
	id               int64
	displayName      string
	handle           string
	referralsCount   int
	dailyAllowance   int
	premiumExpiresAt int64
	joinedAt         int64
	lastRequestAt    int64
	referredBy       int64
}

// New validates and creates a fresh User with a full allowance.
func New(id int64, meta Meta, allowance int, now time.Time) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("%w: %d", domain.ErrInvalidUserID, id)
	}
	if allowance < 0 {
		return User{}, fmt.Errorf("allowance must be non-negative")
	}
	ms := now.UnixMilli()
	return User{
		id:             id,
		displayName:    meta.DisplayName,
		handle:         meta.Handle,
		dailyAllowance: allowance,
		joinedAt:       ms,
		lastRequestAt:  ms,
	}, nil
}

// WithReferrer returns a copy attributed to referrer. Self-referral is rejected.
func (u User) WithReferrer(referrer int64) (User, error) {
	if referrer <= 0 || referrer == u.id {
		return u, fmt.Errorf("%w: user %d referred by %d", domain.ErrInvalidReferral, u.id, referrer)
	}
	u.referredBy = referrer
	return u, nil
}

// Reconstruct creates a User without validation (storage hydration).
func Reconstruct(
	id int64, displayName, handle string,
	referralsCount, dailyAllowance int,
	premiumExpiresAt, joinedAt, lastRequestAt, referredBy int64,
) User {
	return User{
		id:               id,
		displayName:      displayName,
		handle:           handle,
		referralsCount:   referralsCount,
		dailyAllowance:   dailyAllowance,
		premiumExpiresAt: premiumExpiresAt,
		joinedAt:         joinedAt,
		lastRequestAt:    lastRequestAt,
		referredBy:       referredBy,
	}
}

// ID returns the platform user identifier.
func (u User) ID() int64 { return u.id }

// DisplayName returns the display name, if any.
func (u User) DisplayName() string { return u.displayName }

// Handle returns the platform handle, if any.
func (u User) Handle() string { return u.handle }

// ReferralsCount returns the number of users attributed to this one.
func (u User) ReferralsCount() int { return u.referralsCount }

// DailyAllowance returns the remaining free requests for today.
func (u User) DailyAllowance() int { return u.dailyAllowance }

// PremiumExpiresAtMillis returns the premium expiry in unix millis (0 if absent).
func (u User) PremiumExpiresAtMillis() int64 { return u.premiumExpiresAt }

// PremiumExpiresAt returns the premium expiry, zero time if absent.
func (u User) PremiumExpiresAt() time.Time { return fromMillis(u.premiumExpiresAt) }

// JoinedAt returns the creation time in unix millis.
func (u User) JoinedAt() int64 { return u.joinedAt }

// LastRequestAt returns the last allowance interaction in unix millis.
func (u User) LastRequestAt() int64 { return u.lastRequestAt }

// ReferredBy returns the referrer id, 0 if none.
func (u User) ReferredBy() int64 { return u.referredBy }

// HasReferrer reports whether the user was attributed to a referrer.
func (u User) HasReferrer() bool { return u.referredBy != 0 }

// IsPremium reports whether premium is active at now.
func (u User) IsPremium(now time.Time) bool {
	return premium.IsActive(u.PremiumExpiresAt(), now)
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
