package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateDocument  = "CREATE_DOCUMENT"
	ActionApproveDocument = "APPROVE_DOCUMENT"
	ActionRejectDocument  = "REJECT_DOCUMENT"
	ActionEditDocument    = "EDIT_DOCUMENT"
	ActionRequestVoid     = "REQUEST_VOID"
	ActionApproveVoid     = "APPROVE_VOID"
	ActionDeleteDocument  = "DELETE_DOCUMENT"

	ActionCreateRole       = "CREATE_ROLE"
	ActionUpdateRole       = "UPDATE_ROLE"
	ActionDeleteRole       = "DELETE_ROLE"
	ActionUpsertOverride   = "UPSERT_PERMISSION_OVERRIDE"
	ActionGrantCapability  = "GRANT_USER_CAPABILITY"
	ActionRevokeCapability = "REVOKE_USER_CAPABILITY"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
