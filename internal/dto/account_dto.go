package dto

import (
	"time"

	"mailauth/internal/entity"
)

type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Link      string `json:"link" validate:"omitempty,url"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
	Link  string `json:"link" validate:"omitempty,url"`
}

type PasswordResetVerifyRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

type EmailChangeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Link  string `json:"link" validate:"omitempty,url"`
}

type PasswordChangeRequest struct {
	Password    string `json:"password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SuccessResponse struct {
	Success string `json:"success"`
}

type SuccessWithEmailResponse struct {
	Success string `json:"success"`
	Email   string `json:"email"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	IsVerified bool      `json:"is_verified"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	return UserResponse{
		ID:         user.ID.String(),
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		IsVerified: user.IsVerified,
		IsActive:   user.IsActive,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}
