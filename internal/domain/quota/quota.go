// Package quota decides whether a user may spend a request today.
package quota

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/domain/user"
)

// Reason explains a Decision.
type Reason string

// Decision reasons.
const (
	ReasonPremium      Reason = "premium"
	ReasonAllowance    Reason = "allowance"
	ReasonLimitReached Reason = "limit_reached"
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed   bool
	Reason    Reason
	Premium   bool
	Remaining int
}

// Policy holds the allowance rules. Day boundaries are computed in Location.
type Policy struct {
	freeDailyLimit int
	location       *time.Location
}

// NewPolicy validates and creates a Policy. A nil location means time.Local.
func NewPolicy(freeDailyLimit int, loc *time.Location) (Policy, error) {
	if freeDailyLimit <= 0 {
		return Policy{}, fmt.Errorf("free daily limit must be positive")
	}
	if loc == nil {
		loc = time.Local
	}
	return Policy{freeDailyLimit: freeDailyLimit, location: loc}, nil
}

// FreeDailyLimit returns the per-day allowance of a free user.
func (p Policy) FreeDailyLimit() int { return p.freeDailyLimit }

// Location returns the reference timezone.
func (p Policy) Location() *time.Location { return p.location }

// ResetAllowance is the allowance a free user gets at the start of a day.
// Both the lazy rollover and the scheduled reset write this value.
func (p Policy) ResetAllowance() int { return p.freeDailyLimit }

// Evaluate decides whether u may make a request at now.
// Rollover must already be applied.
func (p Policy) Evaluate(u user.User, now time.Time) Decision {
	if u.IsPremium(now) {
		return Decision{Allowed: true, Reason: ReasonPremium, Premium: true, Remaining: u.DailyAllowance()}
	}
	if u.DailyAllowance() > 0 {
		return Decision{Allowed: true, Reason: ReasonAllowance, Remaining: u.DailyAllowance()}
	}
	return Decision{Allowed: false, Reason: ReasonLimitReached}
}

// NeedsRollover reports whether the last request happened on an earlier calendar day.
func (p Policy) NeedsRollover(u user.User, now time.Time) bool {
	return u.LastRequestAt() < p.DayStart(now).UnixMilli()
}

// DayStart returns local midnight of the day containing now.
func (p Policy) DayStart(now time.Time) time.Time {
	t := now.In(p.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.location)
}

// NextMidnight returns the first local midnight strictly after now.
func (p Policy) NextMidnight(now time.Time) time.Time {
	t := now.In(p.location)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, p.location)
}
