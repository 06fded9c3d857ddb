package user

import (
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/domain"
)

var now = time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)

func TestNew_Valid(t *testing.T) {
	u, err := New(42, Meta{DisplayName: "Ali", Handle: "ali"}, 10, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID() != 42 {
		t.Errorf("ID() = %d, want 42", u.ID())
	}
	if u.DailyAllowance() != 10 {
		t.Errorf("DailyAllowance() = %d, want 10", u.DailyAllowance())
	}
	if u.JoinedAt() != now.UnixMilli() || u.LastRequestAt() != now.UnixMilli() {
		t.Errorf("timestamps = %d/%d, want %d", u.JoinedAt(), u.LastRequestAt(), now.UnixMilli())
	}
	if u.HasReferrer() {
		t.Error("fresh user must have no referrer")
	}
	if u.IsPremium(now) {
		t.Error("fresh user must not be premium")
	}
	if !u.PremiumExpiresAt().IsZero() {
		t.Errorf("PremiumExpiresAt() = %v, want zero", u.PremiumExpiresAt())
	}
}

func TestNew_InvalidID(t *testing.T) {
	for _, id := range []int64{0, -7} {
		_, err := New(id, Meta{}, 10, now)
		if !errors.Is(err, domain.ErrInvalidUserID) {
			t.Errorf("New(%d): expected ErrInvalidUserID, got %v", id, err)
		}
	}
}

func TestNew_NegativeAllowance(t *testing.T) {
	if _, err := New(1, Meta{}, -1, now); err == nil {
		t.Fatal("expected error")
	}
}

func TestWithReferrer(t *testing.T) {
	u, _ := New(42, Meta{}, 10, now)

	ref, err := u.WithReferrer(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ReferredBy() != 7 {
		t.Errorf("ReferredBy() = %d, want 7", ref.ReferredBy())
	}
	if u.HasReferrer() {
		t.Error("original value must stay unchanged")
	}
}

func TestWithReferrer_SelfRejected(t *testing.T) {
	u, _ := New(42, Meta{}, 10, now)

	got, err := u.WithReferrer(42)
	if !errors.Is(err, domain.ErrInvalidReferral) {
		t.Fatalf("expected ErrInvalidReferral, got %v", err)
	}
	if got.HasReferrer() {
		t.Error("self-referral must leave the user without referrer")
	}
}

func TestReconstruct_Premium(t *testing.T) {
	exp := now.Add(time.Hour).UnixMilli()
	u := Reconstruct(1, "", "", 5, 0, exp, 1, 2, 3)

	if !u.IsPremium(now) {
		t.Error("expected premium")
	}
	if u.IsPremium(now.Add(2 * time.Hour)) {
		t.Error("expected lapsed premium")
	}
	if u.PremiumExpiresAtMillis() != exp {
		t.Errorf("PremiumExpiresAtMillis() = %d, want %d", u.PremiumExpiresAtMillis(), exp)
	}
	if u.ReferralsCount() != 5 || u.ReferredBy() != 3 {
		t.Errorf("unexpected fields: %+v", u)
	}
}
