package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mailauth/internal/entity"
	"mailauth/internal/service"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sentMail struct {
	Email string
	Code  string
	Link  string
}

type fakeEmailSender struct {
	mu       sync.Mutex
	signups  []sentMail
	welcomes []string
	resets   []sentMail
	changes  []sentMail
}

func (f *fakeEmailSender) SendSignupEmail(ctx context.Context, email, code, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signups = append(f.signups, sentMail{Email: email, Code: code, Link: link})
	return nil
}

func (f *fakeEmailSender) SendWelcomeEmail(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcomes = append(f.welcomes, email)
	return nil
}

func (f *fakeEmailSender) SendPasswordResetEmail(ctx context.Context, email, code, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, sentMail{Email: email, Code: code, Link: link})
	return nil
}

func (f *fakeEmailSender) SendEmailChangeEmail(ctx context.Context, email, code, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, sentMail{Email: email, Code: code, Link: link})
	return nil
}

func (f *fakeEmailSender) signupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.signups)
}

func (f *fakeEmailSender) welcomeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.welcomes)
}

func (f *fakeEmailSender) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets)
}

func (f *fakeEmailSender) changeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.changes)
}

func (f *fakeEmailSender) signupCode(index int) sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signups[index]
}

func (f *fakeEmailSender) resetCode(index int) sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets[index]
}

func (f *fakeEmailSender) changeCode(index int) sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changes[index]
}

type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

func newServiceForTest(t *testing.T) (*service.AccountService, *fakeEmailSender, *fakeClock, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.ActionCode{},
		&entity.AuthToken{},
		&entity.SecurityLog{},
	); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	sender := &fakeEmailSender{}
	clock := &fakeClock{current: time.Now().UTC()}
	svc := service.NewAccountService(
		db,
		sender,
		service.BcryptPasswordHasher{Cost: bcrypt.MinCost},
		clock,
		service.AccountConfig{},
		nil,
	)
	return svc, sender, clock, db
}

func seedUser(t *testing.T, db *gorm.DB, email, password string, verified, active bool) *entity.User {
	t.Helper()
	hasher := service.BcryptPasswordHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &entity.User{Email: email, PasswordHash: &hash, IsVerified: verified, IsActive: true}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	if !active {
		if err := db.Model(user).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate user %s: %v", email, err)
		}
		user.IsActive = false
	}
	return user
}

func loadUser(t *testing.T, db *gorm.DB, email string) *entity.User {
	t.Helper()
	var user entity.User
	err := db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("load user %s: %v", email, err)
	}
	return &user
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRequestSignupCreatesStubAndSendsCode(t *testing.T) {
	svc, sender, _, db := newServiceForTest(t)
	ctx := context.Background()

	user, err := svc.RequestSignup(ctx, service.SignupInput{
		Email:     "A@Example.com",
		Password:  "Str0ngP@ss",
		FirstName: "Ada",
		Link:      "https://app.example.com/continue",
	})
	if err != nil {
		t.Fatalf("request signup: %v", err)
	}
	if user.Email != "a@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if user.IsVerified {
		t.Fatal("new signup must start unverified")
	}

	waitFor(t, func() bool { return sender.signupCount() == 1 })
	mail := sender.signupCode(0)
	if mail.Email != "a@example.com" || mail.Code == "" {
		t.Fatalf("unexpected signup mail: %+v", mail)
	}
	if mail.Link != "https://app.example.com/continue" {
		t.Fatalf("continuation link not threaded through: %+v", mail)
	}

	var count int64
	if err := db.Model(&entity.ActionCode{}).Count(&count).Error; err != nil {
		t.Fatalf("count codes: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one code row, got %d", count)
	}
}

func TestRequestSignupVerifiedOwnerFails(t *testing.T) {
	svc, sender, _, db := newServiceForTest(t)
	ctx := context.Background()
	seedUser(t, db, "taken@example.com", "whatever1", true, true)

	_, err := svc.RequestSignup(ctx, service.SignupInput{Email: "taken@example.com", Password: "Str0ngP@ss"})
	if !errors.Is(err, service.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if sender.signupCount() != 0 {
		t.Fatal("no email must be sent for a taken address")
	}
}

func TestRequestSignupUnverifiedOwnerReissues(t *testing.T) {
	svc, sender, _, _ := newServiceForTest(t)
	ctx := context.Background()

	first, err := svc.RequestSignup(ctx, service.SignupInput{Email: "b@example.com", Password: "Str0ngP@ss"})
	if err != nil {
		t.Fatalf("first signup: %v", err)
	}
	second, err := svc.RequestSignup(ctx, service.SignupInput{Email: "b@example.com", Password: "0therP@ssw"})
	if err != nil {
		t.Fatalf("second signup: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one stub user, got %s and %s", first.ID, second.ID)
	}
	waitFor(t, func() bool { return sender.signupCount() == 2 })
}

func TestLoginStates(t *testing.T) {
	svc, _, _, db := newServiceForTest(t)
	ctx := context.Background()
	seedUser(t, db, "ok@example.com", "Str0ngP@ss", true, true)
	seedUser(t, db, "unverified@example.com", "Str0ngP@ss", false, true)
	seedUser(t, db, "inactive@example.com", "Str0ngP@ss", true, false)

	if _, err := svc.Login(ctx, "ok@example.com", "wrong-pass", ""); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "ghost@example.com", "Str0ngP@ss", ""); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "unverified@example.com", "Str0ngP@ss", ""); !errors.Is(err, service.ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
	if _, err := svc.Login(ctx, "inactive@example.com", "Str0ngP@ss", ""); !errors.Is(err, service.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}

	token, err := svc.Login(ctx, "ok@example.com", "Str0ngP@ss", "203.0.113.9")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token key")
	}
}

func TestLoginIdempotentTokenAndLogoutEverywhere(t *testing.T) {
	svc, _, _, db := newServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, db, "ok@example.com", "Str0ngP@ss", true, true)

	first, err := svc.Login(ctx, "ok@example.com", "Str0ngP@ss", "")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := svc.Login(ctx, "ok@example.com", "Str0ngP@ss", "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first != second {
		t.Fatalf("repeated logins must return the same token, got %q and %q", first, second)
	}

	resolved, err := svc.UserByToken(ctx, first)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if resolved == nil || resolved.ID != user.ID {
		t.Fatalf("expected token to resolve to the user, got %+v", resolved)
	}

	if err := svc.Logout(ctx, user.ID, ""); err != nil {
		t.Fatalf("logout: %v", err)
	}
	resolved, err = svc.UserByToken(ctx, first)
	if err != nil {
		t.Fatalf("resolve after logout: %v", err)
	}
	if resolved != nil {
		t.Fatal("token must be dead after logout")
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _, db := newServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, db, "ok@example.com", "OldP@ssw0rd", true, true)

	err := svc.ChangePassword(ctx, user.ID, "not-the-password", "NewP@ssw0rd")
	if !errors.Is(err, service.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "OldP@ssw0rd", "NewP@ssw0rd"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, "ok@example.com", "NewP@ssw0rd", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := svc.Login(ctx, "ok@example.com", "OldP@ssw0rd", ""); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
}

func TestRequestPasswordResetAntiEnumeration(t *testing.T) {
	svc, sender, _, db := newServiceForTest(t)
	ctx := context.Background()
	seedUser(t, db, "unverified@example.com", "Str0ngP@ss", false, true)
	seedUser(t, db, "inactive@example.com", "Str0ngP@ss", true, false)

	_, missingErr := svc.RequestPasswordReset(ctx, "ghost@example.com", "", "")
	_, unverifiedErr := svc.RequestPasswordReset(ctx, "unverified@example.com", "", "")
	_, inactiveErr := svc.RequestPasswordReset(ctx, "inactive@example.com", "", "")

	for _, err := range []error{missingErr, unverifiedErr, inactiveErr} {
		if !errors.Is(err, service.ErrNotAllowed) {
			t.Fatalf("expected ErrNotAllowed, got %v", err)
		}
	}
	if missingErr.Error() != unverifiedErr.Error() {
		t.Fatalf("refusals must be indistinguishable: %q vs %q", missingErr, unverifiedErr)
	}
	if sender.resetCount() != 0 {
		t.Fatal("no reset email may be sent on refusal")
	}
}
