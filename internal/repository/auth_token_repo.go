package repository

import (
	"context"
	"errors"

	"mailauth/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuthTokenRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, newKey func() (string, error)) (*entity.AuthToken, error)
	FindByKey(ctx context.Context, key string) (*entity.AuthToken, error)
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) error
}

type authTokenRepository struct {
	db *gorm.DB
}

func NewAuthTokenRepository(db *gorm.DB) AuthTokenRepository {
	return &authTokenRepository{db: db}
}

// GetOrCreate returns the user's existing token, minting one with newKey
// only when none exists. The unique constraint on user_id resolves
// concurrent first logins; the loser re-reads the winner's token.
func (r *authTokenRepository) GetOrCreate(
	ctx context.Context,
	userID uuid.UUID,
	newKey func() (string, error),
) (*entity.AuthToken, error) {

	token, err := r.findByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if token != nil {
		return token, nil
	}

	key, err := newKey()
	if err != nil {
		return nil, err
	}
	created := &entity.AuthToken{UserID: userID, Key: key}
	err = r.db.WithContext(ctx).Create(created).Error
	if err == nil {
		return created, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		token, findErr := r.findByUser(ctx, userID)
		if findErr != nil {
			return nil, findErr
		}
		if token != nil {
			return token, nil
		}
	}
	return nil, err
}

func (r *authTokenRepository) FindByKey(ctx context.Context, key string) (*entity.AuthToken, error) {
	var token entity.AuthToken
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("key = ?", key).
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &token, err
}

func (r *authTokenRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&entity.AuthToken{}).
		Error
}

func (r *authTokenRepository) findByUser(ctx context.Context, userID uuid.UUID) (*entity.AuthToken, error) {
	var token entity.AuthToken
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &token, err
}
