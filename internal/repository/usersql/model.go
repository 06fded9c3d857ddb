package usersql

import domuser "github.com/kailas-cloud/tutorbot/internal/domain/user"

// userRow is the GORM model of the users table. Timestamps are unix millis.
type userRow struct {
	ID               int64  `gorm:"primaryKey;autoIncrement:false"`
	DisplayName      string `gorm:"size:255"`
	Handle           string `gorm:"size:255"`
	ReferralsCount   int    `gorm:"not null"`
	DailyAllowance   int    `gorm:"not null"`
	PremiumExpiresAt *int64
	JoinedAt         int64 `gorm:"not null"`
	LastRequestAt    int64 `gorm:"not null"`
	ReferredBy       *int64
}

func (userRow) TableName() string { return "users" }

func rowFromUser(u domuser.User) userRow {
	return userRow{
		ID:               u.ID(),
		DisplayName:      u.DisplayName(),
		Handle:           u.Handle(),
		ReferralsCount:   u.ReferralsCount(),
		DailyAllowance:   u.DailyAllowance(),
		PremiumExpiresAt: nullable(u.PremiumExpiresAtMillis()),
		JoinedAt:         u.JoinedAt(),
		LastRequestAt:    u.LastRequestAt(),
		ReferredBy:       nullable(u.ReferredBy()),
	}
}

func (r userRow) toDomain() domuser.User {
	return domuser.Reconstruct(
		r.ID, r.DisplayName, r.Handle,
		r.ReferralsCount, r.DailyAllowance,
		deref(r.PremiumExpiresAt), r.JoinedAt, r.LastRequestAt, deref(r.ReferredBy),
	)
}

func nullable(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
