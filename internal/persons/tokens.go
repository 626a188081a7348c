package persons

import (
	"time"

	"github.com/google/uuid"
)

// ConfirmationToken proves ownership of the email address used at registration.
type ConfirmationToken struct {
	Token    string    `gorm:"column:token;primaryKey;size:36"`
	PersonID string    `gorm:"column:person_id;size:36;not null;index"`
	Person   *Person   `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE"`
	Created  time.Time `gorm:"column:created;not null;index"`
}

// TableName exposes the table backing confirmation tokens.
func (ConfirmationToken) TableName() string {
	return "confirmation_tokens"
}

// PasswordResetToken authorizes one password change without the old password.
type PasswordResetToken struct {
	Token    string    `gorm:"column:token;primaryKey;size:36"`
	PersonID string    `gorm:"column:person_id;size:36;not null;index"`
	Person   *Person   `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE"`
	Created  time.Time `gorm:"column:created;not null;index"`
}

// TableName exposes the table backing password reset tokens.
func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}

// Tokens are random rather than time ordered so they cannot be guessed.
func newToken() string {
	return uuid.NewString()
}
