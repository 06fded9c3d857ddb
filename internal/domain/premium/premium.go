// Package premium holds the pure rules of the unlimited premium window.
package premium

import "time"

// Day is the length of one premium day.
const Day = 24 * time.Hour

// IsActive reports whether expiresAt is set and strictly after now.
func IsActive(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && expiresAt.After(now)
}

// Extend returns the expiry after granting days of premium.
// An active window is stacked on; an absent or lapsed one starts from now.
func Extend(current, now time.Time, days int) time.Time {
	base := now
	if IsActive(current, now) {
		base = current
	}
	return base.Add(time.Duration(days) * Day)
}
