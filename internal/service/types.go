package service

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type AccountConfig struct {
	SignupCodeTTL        time.Duration
	PasswordResetCodeTTL time.Duration
	EmailChangeCodeTTL   time.Duration
}

// EmailSender delivers outbound mail. The service calls it off the request
// path; implementations may block on the mail provider.
type EmailSender interface {
	SendSignupEmail(ctx context.Context, email string, code string, link string) error
	SendWelcomeEmail(ctx context.Context, email string) error
	SendPasswordResetEmail(ctx context.Context, email string, code string, link string) error
	SendEmailChangeEmail(ctx context.Context, email string, code string, link string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
