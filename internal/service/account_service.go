package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"mailauth/internal/entity"
	"mailauth/internal/repository"
	"mailauth/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

type AccountService struct {
	db           *gorm.DB
	users        repository.UserRepository
	codes        repository.ActionCodeRepository
	tokens       repository.AuthTokenRepository
	securityLogs repository.SecurityLogRepository

	emailSender  EmailSender
	passwordHash PasswordHasher
	clock        Clock
	config       AccountConfig
	logger       *logrus.Logger
}

func NewAccountService(
	db *gorm.DB,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	clock Clock,
	config AccountConfig,
	logger *logrus.Logger,
) *AccountService {
	return &AccountService{
		db:           db,
		users:        repository.NewUserRepository(db),
		codes:        repository.NewActionCodeRepository(db),
		tokens:       repository.NewAuthTokenRepository(db),
		securityLogs: repository.NewSecurityLogRepository(db),
		emailSender:  emailSender,
		passwordHash: passwordHash,
		clock:        clock,
		config:       config,
		logger:       logger,
	}
}

type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Link      string
	IPAddr    string
}

// RequestSignup resolves or creates the unverified user stub for the email
// and issues a signup code. A verified owner of the address fails the
// request with ErrEmailTaken.
func (s *AccountService) RequestSignup(ctx context.Context, input SignupInput) (*entity.User, error) {
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	user, _, err := s.users.GetOrCreateByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, ErrEmailTaken
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = &hash
	user.FirstName = input.FirstName
	user.LastName = input.LastName
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	code, err := s.issueCode(ctx, user.ID, entity.ActionSignup, input.IPAddr, input.Link, "", s.signupCodeTTL())
	if err != nil {
		return nil, err
	}

	s.dispatchEmail(func(ctx context.Context) error {
		return s.emailSender.SendSignupEmail(ctx, user.Email, code, input.Link)
	})
	s.logSecurity(ctx, &user.ID, input.IPAddr, entity.SignupRequested, nil)
	return user, nil
}

// VerifySignup consumes a signup code, marking the owning user verified and
// dropping every outstanding signup code the user holds.
func (s *AccountService) VerifySignup(ctx context.Context, rawCode string) error {
	code, err := s.consumeCode(ctx, rawCode, signupAction{})
	if err != nil {
		return err
	}

	s.dispatchEmail(func(ctx context.Context) error {
		return s.emailSender.SendWelcomeEmail(ctx, code.User.Email)
	})
	s.logSecurity(ctx, &code.UserID, code.IPAddr, entity.SignupVerified, nil)
	return nil
}

// RequestPasswordReset issues a reset code only for a verified, active
// account. Every other outcome is the same generic ErrNotAllowed so the
// response does not reveal whether the address exists.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email, link, ipAddr string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return "", err
	}
	if user == nil || !user.IsVerified || !user.IsActive {
		return "", ErrNotAllowed
	}

	code, err := s.issueCode(ctx, user.ID, entity.ActionPasswordReset, ipAddr, link, "", s.passwordResetCodeTTL())
	if err != nil {
		return "", err
	}

	s.dispatchEmail(func(ctx context.Context) error {
		return s.emailSender.SendPasswordResetEmail(ctx, user.Email, code, link)
	})
	s.logSecurity(ctx, &user.ID, ipAddr, entity.PasswordResetRequested, nil)
	return user.Email, nil
}

func (s *AccountService) VerifyPasswordReset(ctx context.Context, rawCode, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}
	code, err := s.consumeCode(ctx, rawCode, passwordResetAction{
		hasher:      s.passwordHash,
		newPassword: newPassword,
	})
	if err != nil {
		return err
	}

	s.logSecurity(ctx, &code.UserID, code.IPAddr, entity.PasswordResetCompleted, nil)
	return nil
}

// RequestEmailChange issues an email-change code for the authenticated
// requester. Unlike password reset this operation does report EmailTaken
// when a verified account already owns the candidate address.
func (s *AccountService) RequestEmailChange(ctx context.Context, userID uuid.UUID, newEmail, link, ipAddr string) (string, error) {
	if strings.TrimSpace(newEmail) == "" {
		return "", ErrInvalidInput
	}

	email := utils.NormalizeEmail(newEmail)
	holder, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if holder != nil && holder.IsVerified {
		return "", ErrEmailTaken
	}

	code, err := s.issueCode(ctx, userID, entity.ActionEmailChange, ipAddr, link, email, s.emailChangeCodeTTL())
	if err != nil {
		return "", err
	}

	s.dispatchEmail(func(ctx context.Context) error {
		return s.emailSender.SendEmailChangeEmail(ctx, email, code, link)
	})
	s.logSecurity(ctx, &userID, ipAddr, entity.EmailChangeRequested, map[string]any{"new_email": email})
	return email, nil
}

func (s *AccountService) VerifyEmailChange(ctx context.Context, rawCode string) error {
	code, err := s.consumeCode(ctx, rawCode, emailChangeAction{})
	if err != nil {
		return err
	}

	s.logSecurity(ctx, &code.UserID, code.IPAddr, entity.EmailChangeCompleted, map[string]any{"new_email": code.NewEmail})
	return nil
}

// ChangePassword is the authenticated, synchronous variant: the live
// current-password check stands in for a stored code.
func (s *AccountService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if strings.TrimSpace(currentPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.PasswordHash == nil || !s.passwordHash.Verify(*user.PasswordHash, currentPassword) {
		return ErrPasswordMismatch
	}

	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logSecurity(ctx, &userID, "", entity.PasswordChanged, nil)
	return nil
}

// Login authenticates by email and password and returns the user's bearer
// token key. Repeated logins return the same key.
func (s *AccountService) Login(ctx context.Context, email, password, ipAddr string) (string, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return "", ErrInvalidInput
	}

	normalized := utils.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		return "", err
	}
	if user == nil || user.PasswordHash == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, password)
		s.logSecurity(ctx, nil, ipAddr, entity.LoginFailed, map[string]any{"email": normalized})
		return "", ErrInvalidCredentials
	}
	if !s.passwordHash.Verify(*user.PasswordHash, password) {
		s.logSecurity(ctx, &user.ID, ipAddr, entity.LoginFailed, map[string]any{"email": normalized})
		return "", ErrInvalidCredentials
	}
	if !user.IsVerified {
		return "", ErrNotVerified
	}
	if !user.IsActive {
		return "", ErrNotActive
	}

	token, err := s.tokens.GetOrCreate(ctx, user.ID, func() (string, error) {
		return utils.RandomSecret(30)
	})
	if err != nil {
		return "", err
	}

	s.logSecurity(ctx, &user.ID, ipAddr, entity.LoginSuccess, nil)
	return token.Key, nil
}

// Logout deletes every token the user holds, logging the caller out
// everywhere at once.
func (s *AccountService) Logout(ctx context.Context, userID uuid.UUID, ipAddr string) error {
	if err := s.tokens.DeleteAllByUser(ctx, userID); err != nil {
		return err
	}
	s.logSecurity(ctx, &userID, ipAddr, entity.Logout, nil)
	return nil
}

// UserByToken resolves a bearer token key to its owning user.
func (s *AccountService) UserByToken(ctx context.Context, key string) (*entity.User, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	token, err := s.tokens.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, nil
	}
	return &token.User, nil
}

func (s *AccountService) issueCode(
	ctx context.Context,
	userID uuid.UUID,
	kind entity.ActionKind,
	ipAddr string,
	link string,
	newEmail string,
	ttl time.Duration,
) (string, error) {

	raw, err := utils.RandomSecret(32)
	if err != nil {
		return "", err
	}
	code := &entity.ActionCode{
		UserID:    userID,
		CodeHash:  utils.HashSecret(raw),
		Kind:      kind,
		IPAddr:    ipAddr,
		Link:      link,
		NewEmail:  newEmail,
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.codes.Create(ctx, code); err != nil {
		return "", err
	}
	return raw, nil
}

// dispatchEmail triggers delivery without blocking the response path; a
// failed send is logged and otherwise dropped.
func (s *AccountService) dispatchEmail(send func(ctx context.Context) error) {
	if s.emailSender == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := send(ctx); err != nil && s.logger != nil {
			s.logger.WithError(err).Error("send email")
		}
	}()
}

func (s *AccountService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	ipAddr string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if s.securityLogs == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			return
		}
		payload = datatypes.JSON(bytes)
	}

	var ip *string
	if strings.TrimSpace(ipAddr) != "" {
		ip = &ipAddr
	}
	log := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ip,
		Action:    action,
		Metadata:  payload,
	}
	if err := s.securityLogs.Log(ctx, log); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("write security log")
	}
}

func (s *AccountService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *AccountService) signupCodeTTL() time.Duration {
	if s.config.SignupCodeTTL > 0 {
		return s.config.SignupCodeTTL
	}
	return 24 * time.Hour
}

func (s *AccountService) passwordResetCodeTTL() time.Duration {
	if s.config.PasswordResetCodeTTL > 0 {
		return s.config.PasswordResetCodeTTL
	}
	return 30 * time.Minute
}

func (s *AccountService) emailChangeCodeTTL() time.Duration {
	if s.config.EmailChangeCodeTTL > 0 {
		return s.config.EmailChangeCodeTTL
	}
	return time.Hour
}
