package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthToken is the opaque bearer credential returned by login. A user holds
// at most one row at a time; repeated logins return the same key, so the key
// is stored as issued rather than hashed.
type AuthToken struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	Key string `gorm:"type:varchar(128);not null;uniqueIndex"`

	CreatedAt time.Time
}

func (t *AuthToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
