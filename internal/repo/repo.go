package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/accounts/internal/models"
)

var (
	ErrNotFound    = errors.New("account not found")
	ErrConflict    = errors.New("username or email already taken")
	ErrEmptyFilter = errors.New("empty account filter")
)

type GormRepo struct {
	DB *gorm.DB
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Account{})
}

type findOptions struct {
	includeDeleted bool
	withoutSecrets bool
}

type Option func(*findOptions)

// IncludeDeleted makes a lookup also match soft-deleted accounts.
func IncludeDeleted() Option {
	return func(o *findOptions) { o.includeDeleted = true }
}

// WithoutSecrets leaves password hash, refresh token and version out of the select.
func WithoutSecrets() Option {
	return func(o *findOptions) { o.withoutSecrets = true }
}

func (r *GormRepo) query(ctx context.Context, opts []Option) *gorm.DB {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}

	q := r.DB.WithContext(ctx).Model(&models.Account{})
	if !o.includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if o.withoutSecrets {
		q = q.Omit(models.SecretColumns...)
	}
	return q
}

func first(q *gorm.DB) (*models.Account, error) {
	var acc models.Account
	if err := q.First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

func (r *GormRepo) FindByID(ctx context.Context, id uuid.UUID, opts ...Option) (*models.Account, error) {
	return first(r.query(ctx, opts).Where("id = ?", id))
}
