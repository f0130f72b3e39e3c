package repository

import (
	"context"
	"errors"
	"time"

	"mailauth/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	GetOrCreateByEmail(ctx context.Context, email string) (*entity.User, bool, error)
	Update(ctx context.Context, user *entity.User) error
	SetVerified(ctx context.Context, userID uuid.UUID) error
	SetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetEmail(ctx context.Context, userID uuid.UUID, email string) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

// GetOrCreateByEmail resolves the user owning email, creating an unverified
// stub when none exists. Concurrent calls for the same email are serialized
// by the unique constraint; the loser of the race re-reads the winner's row.
func (r *userRepository) GetOrCreateByEmail(ctx context.Context, email string) (*entity.User, bool, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}

	stub := &entity.User{Email: email, IsActive: true}
	err = r.db.WithContext(ctx).Create(stub).Error
	if err == nil {
		return stub, true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		user, findErr := r.FindByEmail(ctx, email)
		if findErr != nil {
			return nil, false, findErr
		}
		if user != nil {
			return user, false, nil
		}
	}
	return nil, false, err
}

func (r *userRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) SetVerified(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"is_verified": true, "updated_at": time.Now()}).
		Error
}

func (r *userRepository) SetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"password_hash": passwordHash, "updated_at": time.Now()}).
		Error
}

func (r *userRepository) SetEmail(ctx context.Context, userID uuid.UUID, email string) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"email": email, "updated_at": time.Now()}).
		Error
}

func (r *userRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", userID).
		Delete(&entity.User{}).
		Error
}
