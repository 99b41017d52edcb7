package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents the central user entity for logic and database structure
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email    string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName string    `gorm:"type:varchar(255);not null" json:"full_name"` // stamped into requester/approver slots
	Password string    `gorm:"type:varchar(255);not null" json:"-"`         // Omit password from JSON requests/responses
	Role     string    `gorm:"type:varchar(50);not null" json:"role"`

	// StandingGrants is a JSON array of capability codes force-granted to
	// this user regardless of role (e.g. trade-module access).
	StandingGrants string `gorm:"type:jsonb;default:'[]'" json:"standing_grants"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// GrantList decodes the per-user standing grants. Malformed rows yield an
// empty list rather than an error — grants are an escape hatch, never a
// reason to fail resolution.
func (u *User) GrantList() []string {
	if u == nil || u.StandingGrants == "" {
		return nil
	}
	var grants []string
	_ = json.Unmarshal([]byte(u.StandingGrants), &grants)
	return grants
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
