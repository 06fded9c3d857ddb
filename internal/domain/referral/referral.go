// Package referral holds the pure referral reward rules.
package referral

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind classifies the result of attributing a new user.
type Kind string

// Outcome kinds.
const (
	// KindNone means no referral parameter was supplied or the user already existed.
	KindNone Kind = "none"
	// KindInvalid means the parameter was malformed, self-referring or named an unknown user.
	KindInvalid Kind = "invalid"
	// KindCounted means the referrer's count grew without crossing a threshold.
	KindCounted Kind = "counted"
	// KindPremiumEarned means the referrer crossed a threshold and got premium.
	KindPremiumEarned Kind = "premium_earned"
	// KindSkipped means the user was created but the referrer update failed.
	KindSkipped Kind = "skipped"
)

// Outcome is the referral side of first contact.
type Outcome struct {
	Kind         Kind
	ReferrerID   int64
	Count        int
	PremiumUntil time.Time
}

// ParseParam extracts a referrer id from a start parameter.
// Only positive decimal ids are accepted.
func ParseParam(param string) (int64, bool) {
	param = strings.TrimSpace(param)
	if param == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ThresholdReached reports whether count n earns a premium grant.
func ThresholdReached(n, every int) bool {
	return every > 0 && n > 0 && n%every == 0
}

// UntilNext returns how many more referrals are needed for the next grant.
func UntilNext(n, every int) int {
	if every <= 0 {
		return 0
	}
	return every - n%every
}

// Link builds the deep link that attributes new users to id.
func Link(botUsername string, id int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", strings.TrimPrefix(botUsername, "@"), id)
}
