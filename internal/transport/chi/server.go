// Package chi serves the quota, referral and admin HTTP API.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domquota "github.com/kailas-cloud/tutorbot/internal/domain/quota"
	domref "github.com/kailas-cloud/tutorbot/internal/domain/referral"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
	logpkg "github.com/kailas-cloud/tutorbot/internal/logger"
	adminuc "github.com/kailas-cloud/tutorbot/internal/usecase/admin"
	healthuc "github.com/kailas-cloud/tutorbot/internal/usecase/health"
	quotauc "github.com/kailas-cloud/tutorbot/internal/usecase/quota"
	referraluc "github.com/kailas-cloud/tutorbot/internal/usecase/referral"
	"github.com/kailas-cloud/tutorbot/internal/version"
)

// Server holds the HTTP handlers.
type Server struct {
	quota         *quotauc.Service
	referral      *referraluc.Service
	admin         *adminuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	quota *quotauc.Service,
	referral *referraluc.Service,
	admin *adminuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		quota:         quota,
		referral:      referral,
		admin:         admin,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes registers all endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/users/{id}", func(r chi.Router) {
		r.Post("/first-contact", s.FirstContact)
		r.Post("/check", s.Check)
		r.Post("/commit", s.Commit)
		r.Get("/profile", s.Profile)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", s.ResetAll)
		r.Get("/users/count", s.UserCount)
	})
}

// UserMetaRequest carries the optional Telegram profile of a user.
type UserMetaRequest struct {
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
}

// FirstContactRequest is the body of POST /users/{id}/first-contact.
type FirstContactRequest struct {
	UserMetaRequest
	Referral string `json:"referral"`
}

// UserResponse is the JSON form of a user record.
type UserResponse struct {
	ID               int64      `json:"id"`
	DisplayName      string     `json:"display_name,omitempty"`
	Handle           string     `json:"handle,omitempty"`
	ReferralsCount   int        `json:"referrals_count"`
	DailyAllowance   int        `json:"daily_allowance"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`
	JoinedAt         time.Time  `json:"joined_at"`
	ReferredBy       *int64     `json:"referred_by,omitempty"`
}

// ReferralResponse is the referral part of a first contact.
type ReferralResponse struct {
	Outcome      domref.Kind `json:"outcome"`
	ReferrerID   int64       `json:"referrer_id,omitempty"`
	Count        int         `json:"count,omitempty"`
	PremiumUntil *time.Time  `json:"premium_until,omitempty"`
}

// FirstContactResponse is the body returned by POST /users/{id}/first-contact.
type FirstContactResponse struct {
	IsNewUser bool             `json:"is_new_user"`
	User      UserResponse     `json:"user"`
	Referral  ReferralResponse `json:"referral"`
}

// DecisionResponse is the body returned by POST /users/{id}/check.
type DecisionResponse struct {
	Allowed   bool            `json:"allowed"`
	Reason    domquota.Reason `json:"reason"`
	Premium   bool            `json:"premium"`
	Remaining int             `json:"remaining"`
}

// CommitResponse is the body returned by POST /users/{id}/commit.
type CommitResponse struct {
	Remaining int `json:"remaining"`
}

// ProfileResponse is the body returned by GET /users/{id}/profile.
type ProfileResponse struct {
	UserID                 int64      `json:"user_id"`
	Premium                bool       `json:"premium"`
	PremiumExpiresAt       *time.Time `json:"premium_expires_at,omitempty"`
	AllowanceRemaining     int        `json:"allowance_remaining"`
	DailyLimit             int        `json:"daily_limit"`
	ReferralsCount         int        `json:"referrals_count"`
	ReferralsToNextPremium int        `json:"referrals_to_next_premium"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status  healthuc.Status                 `json:"status"`
	Version string                          `json:"version"`
	Checks  map[string]healthuc.CheckResult `json:"checks"`
}

// FirstContact handles POST /users/{id}/first-contact.
func (s *Server) FirstContact(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req FirstContactRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	res, err := s.referral.OnFirstContact(r.Context(), id, metaFromRequest(req.UserMetaRequest), req.Referral)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.IsNewUser {
		status = http.StatusCreated
	}
	writeJSON(w, status, FirstContactResponse{
		IsNewUser: res.IsNewUser,
		User:      userToResponse(res.User),
		Referral:  referralToResponse(res.Referral),
	})
}

// Check handles POST /users/{id}/check. An exhausted allowance answers 429.
func (s *Server) Check(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req UserMetaRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	d, err := s.quota.CheckAndConsume(r.Context(), id, metaFromRequest(req))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if !d.Allowed {
		s.handleDomainError(w, r, domain.ErrLimitReached)
		return
	}
	writeJSON(w, http.StatusOK, DecisionResponse{
		Allowed:   d.Allowed,
		Reason:    d.Reason,
		Premium:   d.Premium,
		Remaining: d.Remaining,
	})
}

// Commit handles POST /users/{id}/commit.
func (s *Server) Commit(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	remaining, err := s.quota.CommitConsumption(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CommitResponse{Remaining: remaining})
}

// Profile handles GET /users/{id}/profile.
func (s *Server) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	p, err := s.quota.Profile(r.Context(), id, user.Meta{})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := ProfileResponse{
		UserID:                 p.UserID,
		Premium:                p.Premium,
		AllowanceRemaining:     p.AllowanceRemaining,
		DailyLimit:             p.DailyLimit,
		ReferralsCount:         p.ReferralsCount,
		ReferralsToNextPremium: p.ReferralsToNextPremium,
	}
	if p.Premium {
		resp.PremiumExpiresAt = timePtr(p.PremiumExpiresAt)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetAll handles POST /admin/reset.
func (s *Server) ResetAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.admin.ResetAll(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset_users": n})
}

// UserCount handles GET /admin/users/count.
func (s *Server) UserCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.admin.UserCount(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  report.Status,
		Version: version.Version,
		Checks:  report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// requestLogger prefers the request-scoped logger installed by the middleware chain.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeInvalidUserID, "user id must be a positive integer")
		return 0, false
	}
	return id, true
}

// decodeOptional decodes a JSON body into v. An empty body is allowed.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func metaFromRequest(req UserMetaRequest) user.Meta {
	return user.Meta{DisplayName: req.DisplayName, Handle: req.Handle}
}

func userToResponse(u user.User) UserResponse {
	resp := UserResponse{
		ID:             u.ID(),
		DisplayName:    u.DisplayName(),
		Handle:         u.Handle(),
		ReferralsCount: u.ReferralsCount(),
		DailyAllowance: u.DailyAllowance(),
		JoinedAt:       time.UnixMilli(u.JoinedAt()).UTC(),
	}
	if u.PremiumExpiresAtMillis() > 0 {
		resp.PremiumExpiresAt = timePtr(u.PremiumExpiresAt())
	}
	if u.HasReferrer() {
		ref := u.ReferredBy()
		resp.ReferredBy = &ref
	}
	return resp
}

func referralToResponse(o domref.Outcome) ReferralResponse {
	resp := ReferralResponse{
		Outcome:    o.Kind,
		ReferrerID: o.ReferrerID,
		Count:      o.Count,
	}
	if !o.PremiumUntil.IsZero() {
		resp.PremiumUntil = timePtr(o.PremiumUntil)
	}
	return resp
}

func timePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
