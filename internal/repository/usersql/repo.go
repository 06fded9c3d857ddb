// Package usersql persists quota records in a SQL table through GORM.
package usersql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domuser "github.com/kailas-cloud/tutorbot/internal/domain/user"
)

// Repo implements the user store on Postgres or SQLite.
// Every mutation is a single conditional statement or one short transaction.
type Repo struct {
	db *gorm.DB
}

// New creates a SQL user repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates or updates the users table.
func (r *Repo) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&userRow{}); err != nil {
		return storeErr("migrate", err)
	}
	return nil
}

// Create inserts u unless a record with the same id exists.
func (r *Repo) Create(ctx context.Context, u domuser.User) (bool, error) {
	row := rowFromUser(u)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, storeErr("create", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Get loads a user by id.
func (r *Repo) Get(ctx context.Context, id int64) (domuser.User, error) {
	row, err := r.get(r.db.WithContext(ctx), id)
	if err != nil {
		return domuser.User{}, err
	}
	return row.toDomain(), nil
}

// RolloverAllowance refills the allowance if the last request predates dayStart.
func (r *Repo) RolloverAllowance(
	ctx context.Context, id int64, dayStart, now time.Time, allowance int,
) (bool, error) {
	res := r.db.WithContext(ctx).Model(&userRow{}).
		Where("id = ? AND last_request_at < ?", id, dayStart.UnixMilli()).
		Updates(map[string]any{
			"daily_allowance": allowance,
			"last_request_at": now.UnixMilli(),
		})
	if res.Error != nil {
		return false, storeErr("rollover", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, r.mustExist(ctx, id)
	}
	return true, nil
}

// ConsumeAllowance decrements the allowance if positive and stamps the request time.
// Returns the remaining allowance and whether anything was consumed.
func (r *Repo) ConsumeAllowance(ctx context.Context, id int64, now time.Time) (int, bool, error) {
	var (
		remaining int
		consumed  bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userRow{}).
			Where("id = ? AND daily_allowance > 0", id).
			Updates(map[string]any{
				"daily_allowance": gorm.Expr("daily_allowance - 1"),
				"last_request_at": now.UnixMilli(),
			})
		if res.Error != nil {
			return storeErr("consume", res.Error)
		}
		consumed = res.RowsAffected > 0

		row, err := r.get(tx, id)
		if err != nil {
			return err
		}
		remaining = row.DailyAllowance
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	if !consumed {
		return 0, false, nil
	}
	return remaining, true, nil
}

// IncrementReferrals bumps the referral count and returns the new total.
func (r *Repo) IncrementReferrals(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userRow{}).
			Where("id = ?", id).
			Update("referrals_count", gorm.Expr("referrals_count + 1"))
		if res.Error != nil {
			return storeErr("increment referrals", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		row, err := r.get(tx, id)
		if err != nil {
			return err
		}
		n = row.ReferralsCount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CompareAndSetPremium sets the premium expiry to next if it still equals prev.
// Zero means absent.
func (r *Repo) CompareAndSetPremium(ctx context.Context, id int64, prev, next time.Time) (bool, error) {
	q := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id)
	if prev.IsZero() {
		q = q.Where("premium_expires_at IS NULL")
	} else {
		q = q.Where("premium_expires_at = ?", prev.UnixMilli())
	}

	var value any
	if !next.IsZero() {
		value = next.UnixMilli()
	}
	res := q.Update("premium_expires_at", value)
	if res.Error != nil {
		return false, storeErr("cas premium", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, r.mustExist(ctx, id)
	}
	return true, nil
}

// ResetAllowances sets the allowance of every user without active premium in one statement.
func (r *Repo) ResetAllowances(ctx context.Context, allowance int, now time.Time) (int, error) {
	res := r.db.WithContext(ctx).Model(&userRow{}).
		Where("premium_expires_at IS NULL OR premium_expires_at <= ?", now.UnixMilli()).
		Update("daily_allowance", allowance)
	if res.Error != nil {
		return 0, storeErr("reset allowances", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Count returns the number of stored users.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&userRow{}).Count(&n).Error; err != nil {
		return 0, storeErr("count", err)
	}
	return int(n), nil
}

func (r *Repo) get(tx *gorm.DB, id int64) (userRow, error) {
	var row userRow
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		return userRow{}, storeErr(fmt.Sprintf("get user %d", id), err)
	}
	return row, nil
}

// mustExist distinguishes "condition not met" from "no such user" after a zero-row update.
func (r *Repo) mustExist(ctx context.Context, id int64) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return storeErr("exists", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return domain.NewStoreError(op, err)
}
