package service

import (
	"context"
	"encoding/json"
	"fmt"

	"backend/internal/model"
	"backend/internal/permission"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpsertOverrideRequest struct {
	RoleName   string `json:"role_name" binding:"required"`
	Capability string `json:"capability" binding:"required"`
	Allowed    *bool  `json:"allowed" binding:"required"`
}

type RoleResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsSystem    bool   `json:"is_system"`
	CreatedAt   string `json:"created_at"`
}

type OverrideResponse struct {
	RoleName   string `json:"role_name"`
	Capability string `json:"capability"`
	Allowed    bool   `json:"allowed"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	CreateRole(ctx context.Context, actorID string, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, actorID, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, actorID, id string) error
	ListOverrides(ctx context.Context) ([]OverrideResponse, error)
	UpsertOverride(ctx context.Context, actorID string, req UpsertOverrideRequest) (*OverrideResponse, error)
	DeleteOverride(ctx context.Context, actorID, roleName, capability string) error
	// ResolveForRole returns the complete effective capability map for a
	// role name: built-in defaults merged with the stored overrides.
	ResolveForRole(ctx context.Context, roleName string) (permission.Capabilities, error)
	SeedDefaultRoles(ctx context.Context) error
}

type roleService struct {
	db *gorm.DB
}

func NewRoleService(db *gorm.DB) RoleService {
	return &roleService{db: db}
}

// writeAudit records a permission-model change in the same transaction as
// the change itself.
func (s *roleService) writeAudit(tx *gorm.DB, actorID, action, entityID, entityName string, details map[string]any) error {
	payload, _ := json.Marshal(details)
	entry := model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if id, err := uuid.Parse(actorID); err == nil {
		entry.UserID = &id
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	var roles []model.Role
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) CreateRole(ctx context.Context, actorID string, req CreateRoleRequest) (*RoleResponse, error) {
	role := model.Role{
		Name:        req.Name,
		Description: req.Description,
		IsSystem:    false,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		return s.writeAudit(tx, actorID, model.ActionCreateRole, role.ID.String(), role.Name, map[string]any{
			"description": role.Description,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toRoleResponse(role)
	return &resp, nil
}

func (s *roleService) UpdateRole(ctx context.Context, actorID, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid role id: %w", err)
	}

	var role model.Role
	if err := s.db.WithContext(ctx).First(&role, "id = ?", roleID).Error; err != nil {
		return nil, fmt.Errorf("role not found: %w", err)
	}

	if role.IsSystem && req.Name != role.Name {
		return nil, fmt.Errorf("built-in role '%s' cannot be renamed", role.Name)
	}

	role.Name = req.Name
	role.Description = req.Description

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&role).Error; err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		return s.writeAudit(tx, actorID, model.ActionUpdateRole, role.ID.String(), role.Name, map[string]any{
			"description": role.Description,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toRoleResponse(role)
	return &resp, nil
}

func (s *roleService) DeleteRole(ctx context.Context, actorID, id string) error {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid role id: %w", err)
	}

	var role model.Role
	if err := s.db.WithContext(ctx).First(&role, "id = ?", roleID).Error; err != nil {
		return fmt.Errorf("role not found: %w", err)
	}
	if role.IsSystem {
		return fmt.Errorf("built-in role '%s' cannot be deleted", role.Name)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_name = ?", role.Name).Delete(&model.PermissionOverride{}).Error; err != nil {
			return fmt.Errorf("failed to remove role overrides: %w", err)
		}
		if err := tx.Delete(&role).Error; err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return s.writeAudit(tx, actorID, model.ActionDeleteRole, role.ID.String(), role.Name, nil)
	})
}

func (s *roleService) ListOverrides(ctx context.Context) ([]OverrideResponse, error) {
	var rows []model.PermissionOverride
	if err := s.db.WithContext(ctx).Order("role_name ASC, capability ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch overrides: %w", err)
	}

	res := make([]OverrideResponse, 0, len(rows))
	for _, row := range rows {
		res = append(res, OverrideResponse{RoleName: row.RoleName, Capability: row.Capability, Allowed: row.Allowed})
	}
	return res, nil
}

func (s *roleService) UpsertOverride(ctx context.Context, actorID string, req UpsertOverrideRequest) (*OverrideResponse, error) {
	known := false
	for _, code := range model.AllCapabilities() {
		if code == req.Capability {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown capability: %s", req.Capability)
	}

	row := model.PermissionOverride{
		RoleName:   req.RoleName,
		Capability: req.Capability,
		Allowed:    *req.Allowed,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsertErr := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role_name"}, {Name: "capability"}},
			DoUpdates: clause.AssignmentColumns([]string{"allowed", "updated_at"}),
		}).Create(&row).Error
		if upsertErr != nil {
			return fmt.Errorf("failed to upsert override: %w", upsertErr)
		}
		return s.writeAudit(tx, actorID, model.ActionUpsertOverride, row.RoleName, row.Capability, map[string]any{
			"allowed": row.Allowed,
		})
	})
	if err != nil {
		return nil, err
	}

	return &OverrideResponse{RoleName: row.RoleName, Capability: row.Capability, Allowed: row.Allowed}, nil
}

func (s *roleService) DeleteOverride(ctx context.Context, actorID, roleName, capability string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_name = ? AND capability = ?", roleName, capability).
			Delete(&model.PermissionOverride{}).Error; err != nil {
			return err
		}
		return s.writeAudit(tx, actorID, model.ActionUpsertOverride, roleName, capability, map[string]any{
			"removed": true,
		})
	})
}

func (s *roleService) ResolveForRole(ctx context.Context, roleName string) (permission.Capabilities, error) {
	overrides, err := LoadOverrides(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}
	return permission.Resolve(roleName, overrides, nil), nil
}

// SeedDefaultRoles ensures the built-in roles exist. Idempotent; runs at
// startup.
func (s *roleService) SeedDefaultRoles(ctx context.Context) error {
	builtins := map[string]string{
		model.RoleAdmin:     "Full system access",
		model.RoleFinance:   "Finance department approver",
		model.RoleManager:   "Operations manager",
		model.RoleCeo:       "Chief executive",
		model.RoleFactory:   "Factory supervisor",
		model.RoleWarehouse: "Warehouse keeper",
		model.RoleSecurity:  "Gate security",
		model.RoleStaff:     "Regular staff",
	}

	for name, desc := range builtins {
		role := model.Role{Name: name, Description: desc, IsSystem: true}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&role).Error
		if err != nil {
			return fmt.Errorf("failed to seed role '%s': %w", name, err)
		}
	}
	return nil
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
