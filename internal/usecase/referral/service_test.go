package referral

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domref "github.com/kailas-cloud/tutorbot/internal/domain/referral"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
	"github.com/kailas-cloud/tutorbot/internal/repository/usermem"
	"github.com/kailas-cloud/tutorbot/internal/usecase/premium"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

var testConfig = Config{FreeDailyLimit: 10, ReferralsForPremium: 5, PremiumDays: 30}

func newTestService(repo *usermem.Repo) *Service {
	clock := domain.ClockFunc(func() time.Time { return testNow })
	return New(repo, premium.New(repo, clock, zap.NewNop()), clock, testConfig, zap.NewNop())
}

// seedReferrer creates id with n referrals already counted.
func seedReferrer(t *testing.T, repo *usermem.Repo, id int64, n int) {
	t.Helper()
	u := user.Reconstruct(id, "ref", "", n, 10, 0, testNow.UnixMilli(), testNow.UnixMilli(), 0)
	if _, err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

// countingGranter records grants and fails when err is set.
type countingGranter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *countingGranter) Grant(context.Context, int64, int) (time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return testNow.Add(30 * 24 * time.Hour), g.err
}

// brokenIncrement fails IncrementReferrals.
type brokenIncrement struct{ *usermem.Repo }

func (brokenIncrement) IncrementReferrals(context.Context, int64) (int, error) {
	return 0, domain.NewStoreError("increment", errors.New("connection reset"))
}

func TestOnFirstContact_NoParam(t *testing.T) {
	repo := usermem.New()
	svc := newTestService(repo)

	res, err := svc.OnFirstContact(context.Background(), 1, user.Meta{DisplayName: "Ann"}, "")
	if err != nil {
		t.Fatalf("OnFirstContact: %v", err)
	}
	if !res.IsNewUser {
		t.Error("expected new user")
	}
	if res.Referral.Kind != domref.KindNone {
		t.Errorf("kind = %q, want none", res.Referral.Kind)
	}
	if res.User.DailyAllowance() != 10 {
		t.Errorf("allowance = %d, want 10", res.User.DailyAllowance())
	}
	if res.User.HasReferrer() {
		t.Error("unexpected referrer")
	}
}

func TestOnFirstContact_ExistingUser(t *testing.T) {
	repo := usermem.New()
	seedReferrer(t, repo, 7, 0)
	seedReferrer(t, repo, 1, 0)
	svc := newTestService(repo)

	res, err := svc.OnFirstContact(context.Background(), 1, user.Meta{}, "7")
	if err != nil {
		t.Fatalf("OnFirstContact: %v", err)
	}
	if res.IsNewUser {
		t.Error("existing user reported as new")
	}
	if res.Referral.Kind != domref.KindNone {
		t.Errorf("kind = %q, want none", res.Referral.Kind)
	}
	ref, _ := repo.Get(context.Background(), 7)
	if ref.ReferralsCount() != 0 {
		t.Errorf("referrer count = %d, want 0", ref.ReferralsCount())
	}
}

func TestOnFirstContact_Counted(t *testing.T) {
	repo := usermem.New()
	seedReferrer(t, repo, 7, 2)
	svc := newTestService(repo)

	res, err := svc.OnFirstContact(context.Background(), 1, user.Meta{}, "7")
	if err != nil {
		t.Fatalf("OnFirstContact: %v", err)
	}
	if res.Referral.Kind != domref.KindCounted || res.Referral.Count != 3 {
		t.Errorf("outcome = %+v, want counted/3", res.Referral)
	}
	if res.User.ReferredBy() != 7 {
		t.Errorf("referred_by = %d, want 7", res.User.ReferredBy())
	}
	stored, _ := repo.Get(context.Background(), 1)
	if stored.ReferredBy() != 7 {
		t.Errorf("stored referred_by = %d, want 7", stored.ReferredBy())
	}
}

func TestOnFirstContact_FifthReferralGrantsPremium(t *testing.T) {
	repo := usermem.New()
	seedReferrer(t, repo, 7, 4)
	svc := newTestService(repo)

	res, err := svc.OnFirstContact(context.Background(), 1, user.Meta{}, "7")
	if err != nil {
		t.Fatalf("OnFirstContact: %v", err)
	}
	if res.Referral.Kind != domref.KindPremiumEarned {
		t.Fatalf("kind = %q, want premium_earned", res.Referral.Kind)
	}
	want := testNow.Add(30 * 24 * time.Hour)
	if !res.Referral.PremiumUntil.Equal(want) {
		t.Errorf("premium until = %v, want %v", res.Referral.PremiumUntil, want)
	}
	ref, _ := repo.Get(context.Background(), 7)
	if ref.ReferralsCount() != 5 {
		t.Errorf("count = %d, want 5", ref.ReferralsCount())
	}
	if !ref.IsPremium(testNow) {
		t.Error("referrer should be premium")
	}
}

func TestOnFirstContact_TenthReferralExtends(t *testing.T) {
	repo := usermem.New()
	active := testNow.Add(10 * 24 * time.Hour)
	u := user.Reconstruct(7, "", "", 9, 10, active.UnixMilli(), 0, 0, 0)
	if _, err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	svc := newTestService(repo)

	res, err := svc.OnFirstContact(context.Background(), 1, user.Meta{}, "7")
	if err != nil {
		t.Fatalf("OnFirstContact: %v", err)
	}
	want := active.Add(30 * 24 * time.Hour)
	if res.Referral.Kind != domref.KindPremiumEarned || !res.Referral.PremiumUntil.Equal(want) {
		t.Errorf("outcome = %+v, want premium until %v", res.Referral, want)
	}
}

func TestOnFirstContact_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		id    int64
		param string
	}{
		{"self referral", 7, "7"},
		{"unknown referrer", 1, "404"},
		{"malformed", 1, "abc"},
		{"negative", 1, "-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := usermem.New()
			svc := newTestService(repo)

			res, err := svc.OnFirstContact(context.Background(), tt.id, user.Meta{}, tt.param)
			if err != nil {
				t.Fatalf("OnFirstContact: %v", err)
			}
			if !res.IsNewUser {
				t.Error("user should still be created")
			}
			if res.Referral.Kind != domref.KindInvalid {
				t.Errorf("kind = %q, want invalid", res.Referral.Kind)
			}
			if res.User.HasReferrer() {
				t.Error("invalid referral must not set referrer")
			}
		})
	}
}

func TestOnFirstContact_InvalidUserID(t *testing.T) {
	svc := newTestService(usermem.New())
	_, err := svc.OnFirstContact(context.Background(), 0, user.Meta{}, "")
	if !errors.Is(err, domain.ErrInvalidUserID) {
		t.Errorf("err = %v, want ErrInvalidUserID", err)
	}
}

func TestOnFirstContact_IncrementFailureSkips(t *testing.T) {
	repo := usermem.New()
	seedReferrer(t, repo, 7, 0)
	clock := domain.ClockFunc(func() time.Time { return testNow })
	granter := &countingGranter{}
	svc := New(brokenIncrement{repo}, granter, clock, testConfig, zap.NewNop())

	res, err := svc.OnFirstContact(context.Background(), 1, user.Meta{}, "7")
	if err != nil {
		t.Fatalf("OnFirstContact: %v", err)
	}
	if res.Referral.Kind != domref.KindSkipped {
		t.Errorf("kind = %q, want skipped", res.Referral.Kind)
	}
	if _, err := repo.Get(context.Background(), 1); err != nil {
		t.Errorf("new user should persist: %v", err)
	}
	if granter.calls != 0 {
		t.Errorf("grants = %d, want 0", granter.calls)
	}
}

func TestOnFirstContact_GrantFailureStillCounts(t *testing.T) {
	repo := usermem.New()
	seedReferrer(t, repo, 7, 4)
	clock := domain.ClockFunc(func() time.Time { return testNow })
	granter := &countingGranter{err: domain.ErrConflict}
	svc := New(repo, granter, clock, testConfig, zap.NewNop())

	res, err := svc.OnFirstContact(context.Background(), 1, user.Meta{}, "7")
	if err != nil {
		t.Fatalf("OnFirstContact: %v", err)
	}
	if res.Referral.Kind != domref.KindCounted || res.Referral.Count != 5 {
		t.Errorf("outcome = %+v, want counted/5", res.Referral)
	}
}

func TestOnFirstContact_ConcurrentReferralsGrantOnce(t *testing.T) {
	repo := usermem.New()
	seedReferrer(t, repo, 7, 0)
	clock := domain.ClockFunc(func() time.Time { return testNow })
	granter := &countingGranter{}
	svc := New(repo, granter, clock, testConfig, zap.NewNop())

	var wg sync.WaitGroup
	for i := int64(100); i < 109; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := svc.OnFirstContact(context.Background(), id, user.Meta{}, fmt.Sprint(7)); err != nil {
				t.Errorf("OnFirstContact(%d): %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	ref, _ := repo.Get(context.Background(), 7)
	if ref.ReferralsCount() != 9 {
		t.Errorf("count = %d, want 9", ref.ReferralsCount())
	}
	if granter.calls != 1 {
		t.Errorf("grants = %d, want 1", granter.calls)
	}
}

func TestOnFirstContact_ConcurrentSameUser(t *testing.T) {
	repo := usermem.New()
	seedReferrer(t, repo, 7, 0)
	svc := newTestService(repo)

	var wg sync.WaitGroup
	results := make([]FirstContactResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.OnFirstContact(context.Background(), 1, user.Meta{}, "7")
			if err != nil {
				t.Errorf("OnFirstContact: %v", err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	var created int
	for _, r := range results {
		if r.IsNewUser {
			created++
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
	ref, _ := repo.Get(context.Background(), 7)
	if ref.ReferralsCount() != 1 {
		t.Errorf("count = %d, want 1", ref.ReferralsCount())
	}
}
