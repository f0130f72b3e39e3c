package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActionKind string

const (
	ActionSignup        ActionKind = "signup"
	ActionPasswordReset ActionKind = "password_reset"
	ActionEmailChange   ActionKind = "email_change"
)

// UnknownIPAddr is recorded when the issuing request's client address
// cannot be resolved.
const UnknownIPAddr = "0.0.0.0"

// ActionCode is one outstanding one-time code binding a user to a pending
// sensitive operation. Only the hash of the code is stored; the raw value
// leaves the process exclusively inside the outbound email.
type ActionCode struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	CodeHash string     `gorm:"type:text;not null;uniqueIndex"`
	Kind     ActionKind `gorm:"type:varchar(32);not null;index"`

	IPAddr string `gorm:"type:varchar(45);not null"`
	Link   string `gorm:"type:text"`

	// NewEmail is set for email-change codes only; it is the candidate
	// address, not yet authoritative.
	NewEmail string `gorm:"type:varchar(255)"`

	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

func (c *ActionCode) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.IPAddr == "" {
		c.IPAddr = UnknownIPAddr
	}
	return nil
}
