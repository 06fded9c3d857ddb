package user

import (
	"fmt"
	"strconv"

	domuser "github.com/kailas-cloud/tutorbot/internal/domain/user"
)

// Hash field names.
const (
	fieldID             = "id"
	fieldDisplayName    = "display_name"
	fieldHandle         = "handle"
	fieldReferrals      = "referrals_count"
	fieldAllowance      = "daily_allowance"
	fieldPremiumExpires = "premium_expires_at"
	fieldJoinedAt       = "joined_at"
	fieldLastRequestAt  = "last_request_at"
	fieldReferredBy     = "referred_by"
)

// userToArgs flattens a User into HSET field/value pairs.
// Absent premium and referrer are stored as empty strings.
func userToArgs(u domuser.User) []string {
	return []string{
		fieldID, strconv.FormatInt(u.ID(), 10),
		fieldDisplayName, u.DisplayName(),
		fieldHandle, u.Handle(),
		fieldReferrals, strconv.Itoa(u.ReferralsCount()),
		fieldAllowance, strconv.Itoa(u.DailyAllowance()),
		fieldPremiumExpires, optionalInt(u.PremiumExpiresAtMillis()),
		fieldJoinedAt, strconv.FormatInt(u.JoinedAt(), 10),
		fieldLastRequestAt, strconv.FormatInt(u.LastRequestAt(), 10),
		fieldReferredBy, optionalInt(u.ReferredBy()),
	}
}

// userFromHash hydrates a User from an HGETALL result map.
func userFromHash(m map[string]string) (domuser.User, error) {
	id, err := strconv.ParseInt(m[fieldID], 10, 64)
	if err != nil {
		return domuser.User{}, fmt.Errorf("invalid id: %w", err)
	}
	referrals, err := parseInt(m[fieldReferrals])
	if err != nil {
		return domuser.User{}, fmt.Errorf("invalid referrals_count: %w", err)
	}
	allowance, err := parseInt(m[fieldAllowance])
	if err != nil {
		return domuser.User{}, fmt.Errorf("invalid daily_allowance: %w", err)
	}

	var ts [4]int64
	for i, f := range []string{fieldPremiumExpires, fieldJoinedAt, fieldLastRequestAt, fieldReferredBy} {
		v, err := parseInt64(m[f])
		if err != nil {
			return domuser.User{}, fmt.Errorf("invalid %s: %w", f, err)
		}
		ts[i] = v
	}

	return domuser.Reconstruct(
		id, m[fieldDisplayName], m[fieldHandle],
		referrals, allowance,
		ts[0], ts[1], ts[2], ts[3],
	), nil
}

func optionalInt(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
