package domain

// Limits holds the reward and allowance constants.
type Limits struct {
	FreeDailyLimit      int
	ReferralsForPremium int
	PremiumDays         int
}

// DefaultLimits returns the stock limits: 10 requests a day, 30 premium days per 5 referrals.
func DefaultLimits() Limits {
	return Limits{
		FreeDailyLimit:      10,
		ReferralsForPremium: 5,
		PremiumDays:         30,
	}
}
