package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domquota "github.com/kailas-cloud/tutorbot/internal/domain/quota"
	domref "github.com/kailas-cloud/tutorbot/internal/domain/referral"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
	"github.com/kailas-cloud/tutorbot/internal/repository/usermem"
	adminuc "github.com/kailas-cloud/tutorbot/internal/usecase/admin"
	healthuc "github.com/kailas-cloud/tutorbot/internal/usecase/health"
	premiumuc "github.com/kailas-cloud/tutorbot/internal/usecase/premium"
	quotauc "github.com/kailas-cloud/tutorbot/internal/usecase/quota"
	referraluc "github.com/kailas-cloud/tutorbot/internal/usecase/referral"
	resetuc "github.com/kailas-cloud/tutorbot/internal/usecase/reset"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, repo *usermem.Repo, pinger healthuc.DBPinger) http.Handler {
	t.Helper()
	clock := domain.ClockFunc(func() time.Time { return testNow })
	policy, err := domquota.NewPolicy(2, time.UTC)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	logger := zap.NewNop()

	quotaSvc := quotauc.New(repo, policy, clock, 5, logger)
	premiumSvc := premiumuc.New(repo, clock, logger)
	referralSvc := referraluc.New(repo, premiumSvc, clock, referraluc.Config{
		FreeDailyLimit: 2, ReferralsForPremium: 5, PremiumDays: 30,
	}, logger)
	adminSvc := adminuc.New(resetuc.NewService(repo, policy, clock, logger), repo, nil, logger)
	if pinger == nil {
		pinger = repo
	}
	healthSvc := healthuc.New(pinger, nil)

	r := chi.NewRouter()
	NewServer(quotaSvc, referralSvc, adminSvc, healthSvc, logger).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

func TestFirstContact_CreatedThenOK(t *testing.T) {
	h := newTestRouter(t, usermem.New(), nil)

	rr := do(t, h, http.MethodPost, "/users/1/first-contact", `{"display_name":"Ann","handle":"ann"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	resp := decode[FirstContactResponse](t, rr)
	if !resp.IsNewUser || resp.User.ID != 1 || resp.User.DisplayName != "Ann" {
		t.Errorf("response = %+v", resp)
	}
	if resp.User.DailyAllowance != 2 {
		t.Errorf("allowance = %d, want 2", resp.User.DailyAllowance)
	}
	if resp.Referral.Outcome != domref.KindNone {
		t.Errorf("outcome = %q, want none", resp.Referral.Outcome)
	}

	rr = do(t, h, http.MethodPost, "/users/1/first-contact", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("repeat status = %d, want 200", rr.Code)
	}
	if decode[FirstContactResponse](t, rr).IsNewUser {
		t.Error("repeat contact reported as new")
	}
}

func TestFirstContact_ReferralCounted(t *testing.T) {
	repo := usermem.New()
	h := newTestRouter(t, repo, nil)
	do(t, h, http.MethodPost, "/users/7/first-contact", "")

	rr := do(t, h, http.MethodPost, "/users/1/first-contact", `{"referral":"7"}`)
	resp := decode[FirstContactResponse](t, rr)
	if resp.Referral.Outcome != domref.KindCounted || resp.Referral.Count != 1 || resp.Referral.ReferrerID != 7 {
		t.Errorf("referral = %+v", resp.Referral)
	}
	if resp.User.ReferredBy == nil || *resp.User.ReferredBy != 7 {
		t.Errorf("referred_by = %v, want 7", resp.User.ReferredBy)
	}
}

func TestFirstContact_PremiumEarned(t *testing.T) {
	repo := usermem.New()
	ref := user.Reconstruct(7, "", "", 4, 2, 0, testNow.UnixMilli(), testNow.UnixMilli(), 0)
	if _, err := repo.Create(context.Background(), ref); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h := newTestRouter(t, repo, nil)

	rr := do(t, h, http.MethodPost, "/users/1/first-contact", `{"referral":"7"}`)
	resp := decode[FirstContactResponse](t, rr)
	if resp.Referral.Outcome != domref.KindPremiumEarned || resp.Referral.PremiumUntil == nil {
		t.Fatalf("referral = %+v", resp.Referral)
	}
	if want := testNow.Add(30 * 24 * time.Hour); !resp.Referral.PremiumUntil.Equal(want) {
		t.Errorf("premium_until = %v, want %v", resp.Referral.PremiumUntil, want)
	}
}

func TestFirstContact_BadBody(t *testing.T) {
	h := newTestRouter(t, usermem.New(), nil)
	rr := do(t, h, http.MethodPost, "/users/1/first-contact", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if decode[ErrorResponse](t, rr).Code != CodeBadRequest {
		t.Error("expected bad_request code")
	}
}

func TestInvalidUserID(t *testing.T) {
	h := newTestRouter(t, usermem.New(), nil)
	for _, path := range []string{"/users/abc/check", "/users/0/check", "/users/-5/check"} {
		rr := do(t, h, http.MethodPost, path, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rr.Code)
		}
		if decode[ErrorResponse](t, rr).Code != CodeInvalidUserID {
			t.Errorf("%s: expected invalid_user_id code", path)
		}
	}
}

func TestCheckCommit_UntilLimit(t *testing.T) {
	h := newTestRouter(t, usermem.New(), nil)

	for want := 1; want >= 0; want-- {
		rr := do(t, h, http.MethodPost, "/users/1/check", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("check status = %d, want 200", rr.Code)
		}
		d := decode[DecisionResponse](t, rr)
		if !d.Allowed || d.Reason != domquota.ReasonAllowance {
			t.Fatalf("decision = %+v", d)
		}

		rr = do(t, h, http.MethodPost, "/users/1/commit", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("commit status = %d, want 200", rr.Code)
		}
		if got := decode[CommitResponse](t, rr).Remaining; got != want {
			t.Errorf("remaining = %d, want %d", got, want)
		}
	}

	rr := do(t, h, http.MethodPost, "/users/1/check", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if decode[ErrorResponse](t, rr).Code != CodeLimitReached {
		t.Error("expected limit_reached code")
	}
}

func TestCommit_UnknownUser(t *testing.T) {
	h := newTestRouter(t, usermem.New(), nil)
	rr := do(t, h, http.MethodPost, "/users/99/commit", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestProfile(t *testing.T) {
	repo := usermem.New()
	u := user.Reconstruct(3, "", "", 6, 1, testNow.Add(48*time.Hour).UnixMilli(), testNow.UnixMilli(), testNow.UnixMilli(), 0)
	if _, err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h := newTestRouter(t, repo, nil)

	rr := do(t, h, http.MethodGet, "/users/3/profile", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	p := decode[ProfileResponse](t, rr)
	if !p.Premium || p.PremiumExpiresAt == nil {
		t.Errorf("expected premium profile, got %+v", p)
	}
	if p.ReferralsCount != 6 || p.ReferralsToNextPremium != 4 || p.DailyLimit != 2 {
		t.Errorf("profile = %+v", p)
	}
}

func TestAdmin(t *testing.T) {
	repo := usermem.New()
	h := newTestRouter(t, repo, nil)
	do(t, h, http.MethodPost, "/users/1/first-contact", "")
	do(t, h, http.MethodPost, "/users/2/first-contact", "")
	do(t, h, http.MethodPost, "/users/1/commit", "")

	rr := do(t, h, http.MethodGet, "/admin/users/count", "")
	if got := decode[map[string]int](t, rr)["count"]; got != 2 {
		t.Errorf("count = %d, want 2", got)
	}

	rr = do(t, h, http.MethodPost, "/admin/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rr.Code)
	}
	if got := decode[map[string]int](t, rr)["reset_users"]; got != 2 {
		t.Errorf("reset_users = %d, want 2", got)
	}
	u, _ := repo.Get(context.Background(), 1)
	if u.DailyAllowance() != 2 {
		t.Errorf("allowance after reset = %d, want 2", u.DailyAllowance())
	}
}

func TestHealth(t *testing.T) {
	rr := do(t, newTestRouter(t, usermem.New(), nil), http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if decode[HealthResponse](t, rr).Status != healthuc.Healthy {
		t.Error("expected healthy")
	}

	rr = do(t, newTestRouter(t, usermem.New(), failingPinger{errors.New("down")}), http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestHandleDomainError_Mapping(t *testing.T) {
	s := &Server{logger: zap.NewNop(), errorHandlers: defaultErrorHandlers()}
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{domain.ErrLimitReached, http.StatusTooManyRequests, CodeLimitReached},
		{domain.ErrInvalidReferral, http.StatusBadRequest, CodeInvalidReferral},
		{domain.ErrInvalidUserID, http.StatusBadRequest, CodeInvalidUserID},
		{domain.ErrConflict, http.StatusConflict, CodeConflict},
		{domain.NewStoreError("get", errors.New("eof")), http.StatusServiceUnavailable, CodeStoreUnavailable},
		{domain.ErrCompletionFailed, http.StatusBadGateway, CodeCompletionFailed},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		s.handleDomainError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		if rr.Code != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, rr.Code, tt.status)
		}
		resp := decode[ErrorResponse](t, rr)
		if resp.Code != tt.code {
			t.Errorf("%v: code = %q, want %q", tt.err, resp.Code, tt.code)
		}
		if strings.Contains(resp.Message, "eof") {
			t.Errorf("message leaks internals: %q", resp.Message)
		}
	}
}
