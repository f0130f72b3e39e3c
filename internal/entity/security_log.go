package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SecurityAction string

const (
	SignupRequested        SecurityAction = "signup_requested"
	SignupVerified         SecurityAction = "signup_verified"
	PasswordResetRequested SecurityAction = "password_reset_requested"
	PasswordResetCompleted SecurityAction = "password_reset_completed"
	EmailChangeRequested   SecurityAction = "email_change_requested"
	EmailChangeCompleted   SecurityAction = "email_change_completed"
	PasswordChanged        SecurityAction = "password_changed"
	LoginSuccess           SecurityAction = "login_success"
	LoginFailed            SecurityAction = "login_failed"
	Logout                 SecurityAction = "logout"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID *uuid.UUID `gorm:"type:uuid;index"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL"`

	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(40);not null"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}

func (l *SecurityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
