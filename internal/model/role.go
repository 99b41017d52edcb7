package model

import (
	"time"

	"github.com/google/uuid"
)

// Capability codes. This is the closed set the resolver works against —
// every resolved capability map contains exactly these keys.
const (
	CapViewAllDocuments = "documents.view_all"
	CapEditOwnDocuments = "documents.edit_own"
	CapEditAllDocuments = "documents.edit_all"
	CapDeleteDocuments  = "documents.delete_all"

	CapApprovePaymentFinance = "payment.approve_finance"
	CapApprovePaymentManager = "payment.approve_manager"
	CapApprovePaymentCeo     = "payment.approve_ceo"

	CapApproveExitCeo       = "exit.approve_ceo"
	CapApproveExitFactory   = "exit.approve_factory"
	CapApproveExitWarehouse = "exit.approve_warehouse"
	CapApproveExitSecurity  = "exit.approve_security"

	CapApproveDispatchWarehouse = "dispatch.approve_warehouse"
	CapApproveDispatchManager   = "dispatch.approve_manager"

	CapTradeAccess = "trade.access" // grantable per-user regardless of role
	CapManageRoles = "roles.manage"
	CapManageUsers = "users.manage"
	CapReadAudit   = "audit.read"
)

// AllCapabilities lists every known capability code.
func AllCapabilities() []string {
	return []string{
		CapViewAllDocuments,
		CapEditOwnDocuments,
		CapEditAllDocuments,
		CapDeleteDocuments,
		CapApprovePaymentFinance,
		CapApprovePaymentManager,
		CapApprovePaymentCeo,
		CapApproveExitCeo,
		CapApproveExitFactory,
		CapApproveExitWarehouse,
		CapApproveExitSecurity,
		CapApproveDispatchWarehouse,
		CapApproveDispatchManager,
		CapTradeAccess,
		CapManageRoles,
		CapManageUsers,
		CapReadAudit,
	}
}

// Built-in role names. Administrators may add custom roles as plain Role
// rows; the resolver treats any unknown role name as all-false defaults.
const (
	RoleAdmin     = "admin"
	RoleFinance   = "finance"
	RoleManager   = "manager"
	RoleCeo       = "ceo"
	RoleFactory   = "factory"
	RoleWarehouse = "warehouse"
	RoleSecurity  = "security"
	RoleStaff     = "staff"
)

// Role represents a user role. Built-in roles carry IsSystem to prevent
// deletion; custom roles are plain rows with an opaque name.
type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsSystem    bool      `gorm:"default:false" json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PermissionOverride is one system-wide per-key override: for the given
// role name, force the capability to Allowed. Overrides merge on top of the
// built-in defaults — they never replace the whole default map.
type PermissionOverride struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoleName   string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_role_capability" json:"role_name"`
	Capability string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_role_capability" json:"capability"`
	Allowed    bool      `gorm:"not null" json:"allowed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
