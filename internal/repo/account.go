package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/accounts/internal/models"
)

type Filter struct {
	UserName string
	Email    string
	// MatchAny matches on username OR email instead of both.
	MatchAny bool
}

type AccountUpdate struct {
	UserName string
	Email    string
}

func (f Filter) apply(q *gorm.DB) (*gorm.DB, error) {
	switch {
	case f.UserName == "" && f.Email == "":
		return nil, ErrEmptyFilter
	case f.MatchAny && f.UserName != "" && f.Email != "":
		return q.Where("(user_name = ? OR email = ?)", f.UserName, f.Email), nil
	}

	if f.UserName != "" {
		q = q.Where("user_name = ?", f.UserName)
	}
	if f.Email != "" {
		q = q.Where("email = ?", f.Email)
	}
	return q, nil
}

func (r *GormRepo) FindOne(ctx context.Context, f Filter, opts ...Option) (*models.Account, error) {
	q, err := f.apply(r.query(ctx, opts))
	if err != nil {
		return nil, err
	}
	return first(q)
}

func taken(tx *gorm.DB, userName, email string, except uuid.UUID) error {
	q := tx.Model(&models.Account{}).
		Where("is_deleted = ?", false).
		Where("(user_name = ? OR email = ?)", userName, email)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

// Create inserts acc. The uniqueness check and the insert share a
// transaction; the partial unique indexes catch whatever races past it.
func (r *GormRepo) Create(ctx context.Context, acc *models.Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}

	return translate(r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := taken(tx, acc.UserName, acc.Email, uuid.Nil); err != nil {
			return err
		}
		return tx.Create(acc).Error
	}))
}

// UpdateByID changes username and email of a live account and returns the
// updated row without secrets.
func (r *GormRepo) UpdateByID(ctx context.Context, id uuid.UUID, u AccountUpdate) (*models.Account, error) {
	var updated *models.Account

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := taken(tx, u.UserName, u.Email, id); err != nil {
			return err
		}

		err := updateLive(tx, id, map[string]any{
			"user_name": u.UserName,
			"email":     u.Email,
		})
		if err != nil {
			return err
		}

		acc, err := first(tx.Model(&models.Account{}).Omit(models.SecretColumns...).Where("id = ?", id))
		if err != nil {
			return err
		}
		updated = acc
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

// updateLive writes fields on the live account id and bumps its version.
// Columns not named in fields are left as they are in the row.
func updateLive(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	fields["version"] = gorm.Expr("version + 1")

	res := tx.Model(&models.Account{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRefreshToken replaces the stored refresh token of a live account. An
// empty token revokes the session.
func (r *GormRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	return translate(updateLive(r.DB.WithContext(ctx), id, map[string]any{
		"refresh_token": token,
	}))
}

// MarkDeleted soft-deletes a live account.
func (r *GormRepo) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return translate(updateLive(r.DB.WithContext(ctx), id, map[string]any{
		"is_deleted": true,
		"deleted_at": at,
	}))
}
