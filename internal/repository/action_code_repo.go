package repository

import (
	"context"
	"errors"
	"time"

	"mailauth/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActionCodeRepository interface {
	Create(ctx context.Context, code *entity.ActionCode) error
	FindByCodeHash(ctx context.Context, codeHash string, kind entity.ActionKind) (*entity.ActionCode, error)
	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteAllByUser(ctx context.Context, userID uuid.UUID, kind entity.ActionKind) error
	CleanupExpired(ctx context.Context, now time.Time) error
}

type actionCodeRepository struct {
	db *gorm.DB
}

func NewActionCodeRepository(db *gorm.DB) ActionCodeRepository {
	return &actionCodeRepository{db: db}
}

func (r *actionCodeRepository) Create(ctx context.Context, code *entity.ActionCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// FindByCodeHash returns the code row regardless of expiry, with the owning
// user preloaded. Expiry is the caller's check so that "not found" and
// "expired" stay distinguishable for diagnostics.
func (r *actionCodeRepository) FindByCodeHash(
	ctx context.Context,
	codeHash string,
	kind entity.ActionKind,
) (*entity.ActionCode, error) {

	var code entity.ActionCode
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("code_hash = ? AND kind = ?", codeHash, kind).
		First(&code).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &code, err
}

// DeleteByID reports whether this call removed the row. A false result means
// a concurrent consumer got there first.
func (r *actionCodeRepository) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.ActionCode{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *actionCodeRepository) DeleteAllByUser(
	ctx context.Context,
	userID uuid.UUID,
	kind entity.ActionKind,
) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		Delete(&entity.ActionCode{}).
		Error
}

func (r *actionCodeRepository) CleanupExpired(ctx context.Context, now time.Time) error {
	return r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&entity.ActionCode{}).
		Error
}
