package service

import (
	"context"
	"strings"

	"mailauth/internal/entity"
	"mailauth/internal/repository"
	"mailauth/internal/utils"

	"gorm.io/gorm"
)

// codeAction is one member of the closed set of operations a consumed action
// code can drive. Handle runs inside the consumption transaction, after the
// code has been validated and its row removed, and before sibling cleanup;
// returning an error rolls the whole consumption back.
type codeAction interface {
	Kind() entity.ActionKind
	Handle(ctx context.Context, tx *gorm.DB, code *entity.ActionCode) error
}

// checkCode validates a presented code without mutating anything: exact
// match within the kind's namespace, then expiry. Safe to call repeatedly.
func (s *AccountService) checkCode(
	ctx context.Context,
	db *gorm.DB,
	kind entity.ActionKind,
	rawCode string,
) (*entity.ActionCode, error) {

	if strings.TrimSpace(rawCode) == "" {
		return nil, errCodeNotFound
	}
	code, err := repository.NewActionCodeRepository(db).
		FindByCodeHash(ctx, utils.HashSecret(rawCode), kind)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, errCodeNotFound
	}
	if s.now().After(code.ExpiresAt) {
		return nil, errCodeExpired
	}
	return code, nil
}

// CheckCode is the pre-flight entry point: it tells a client whether a code
// would currently be accepted, without consuming it.
func (s *AccountService) CheckCode(ctx context.Context, kind entity.ActionKind, rawCode string) error {
	_, err := s.checkCode(ctx, s.db, kind, rawCode)
	return err
}

// consumeCode validates the code, applies the action, and deletes the code
// together with all sibling codes of the same kind for the same user, all in
// one transaction. Deleting the matched row first and aborting when no row
// was affected makes consumption at-most-once under concurrent requests: the
// loser observes zero rows and fails like an unknown code.
func (s *AccountService) consumeCode(
	ctx context.Context,
	rawCode string,
	action codeAction,
) (*entity.ActionCode, error) {

	var consumed *entity.ActionCode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.checkCode(ctx, tx, action.Kind(), rawCode)
		if err != nil {
			return err
		}
		codes := repository.NewActionCodeRepository(tx)
		removed, err := codes.DeleteByID(ctx, code.ID)
		if err != nil {
			return err
		}
		if !removed {
			return errCodeNotFound
		}
		if err := action.Handle(ctx, tx, code); err != nil {
			return err
		}
		if err := codes.DeleteAllByUser(ctx, code.UserID, action.Kind()); err != nil {
			return err
		}
		consumed = code
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

type signupAction struct{}

func (signupAction) Kind() entity.ActionKind { return entity.ActionSignup }

func (signupAction) Handle(ctx context.Context, tx *gorm.DB, code *entity.ActionCode) error {
	return repository.NewUserRepository(tx).SetVerified(ctx, code.UserID)
}

type passwordResetAction struct {
	hasher      PasswordHasher
	newPassword string
}

func (passwordResetAction) Kind() entity.ActionKind { return entity.ActionPasswordReset }

func (a passwordResetAction) Handle(ctx context.Context, tx *gorm.DB, code *entity.ActionCode) error {
	hash, err := a.hasher.Hash(a.newPassword)
	if err != nil {
		return err
	}
	return repository.NewUserRepository(tx).SetPassword(ctx, code.UserID, hash)
}

type emailChangeAction struct{}

func (emailChangeAction) Kind() entity.ActionKind { return entity.ActionEmailChange }

// The candidate address may have been claimed between issuance and
// consumption, so ownership is re-checked here. An unverified holder is a
// stale reservation: the account is removed so the now-verified requester
// can take the address.
func (emailChangeAction) Handle(ctx context.Context, tx *gorm.DB, code *entity.ActionCode) error {
	users := repository.NewUserRepository(tx)
	holder, err := users.FindByEmail(ctx, code.NewEmail)
	if err != nil {
		return err
	}
	if holder != nil && holder.ID != code.UserID {
		if holder.IsVerified {
			return ErrEmailTaken
		}
		codes := repository.NewActionCodeRepository(tx)
		if err := codes.DeleteAllByUser(ctx, holder.ID, entity.ActionSignup); err != nil {
			return err
		}
		if err := users.Delete(ctx, holder.ID); err != nil {
			return err
		}
	}
	return users.SetEmail(ctx, code.UserID, code.NewEmail)
}
