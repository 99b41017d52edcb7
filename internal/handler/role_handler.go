package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService service.RoleService
}

func NewRoleHandler(roleService service.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/api/roles")
	roles.Use(middleware.RequireCapability(model.CapManageRoles))
	{
		roles.GET("", h.ListRoles)
		roles.POST("", h.CreateRole)
		roles.PUT("/:id", h.UpdateRole)
		roles.DELETE("/:id", h.DeleteRole)
	}

	overrides := router.Group("/api/permission-overrides")
	overrides.Use(middleware.RequireCapability(model.CapManageRoles))
	{
		overrides.GET("", h.ListOverrides)
		overrides.PUT("", h.UpsertOverride)
		overrides.DELETE("", h.DeleteOverride)
	}

	// Resolved capability map for any role name; any authenticated user
	// may inspect what a role can do (the UI renders buttons from this).
	router.GET("/api/capabilities/:role", middleware.RequireAuth(), h.ResolveCapabilities)
}

// ListRoles returns all roles
// @Summary      List roles
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// CreateRole creates a custom role
// @Summary      Create role
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRoleRequest  true  "Role"
// @Success      201      {object}  response.Response{data=service.RoleResponse}
// @Router       /api/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	role, err := h.roleService.CreateRole(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, role))
}

// UpdateRole updates a role's name/description
// @Summary      Update role
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Role ID"
// @Param        payload  body      service.UpdateRoleRequest  true  "Role"
// @Success      200      {object}  response.Response{data=service.RoleResponse}
// @Router       /api/roles/{id} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	var req service.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	role, err := h.roleService.UpdateRole(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	middleware.ClearCapabilityCache(role.Name)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// DeleteRole removes a custom role
// @Summary      Delete role
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Role ID"
// @Success      200  {object}  response.Response
// @Router       /api/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	if err := h.roleService.DeleteRole(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	middleware.ClearCapabilityCache("")
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Role deleted successfully"))
}

// ListOverrides returns the system-wide permission override table
// @Summary      List permission overrides
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/permission-overrides [get]
func (h *RoleHandler) ListOverrides(c *gin.Context) {
	overrides, err := h.roleService.ListOverrides(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, overrides))
}

// UpsertOverride sets one (role, capability) override
// @Summary      Upsert permission override
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.UpsertOverrideRequest  true  "Override"
// @Success      200      {object}  response.Response{data=service.OverrideResponse}
// @Router       /api/permission-overrides [put]
func (h *RoleHandler) UpsertOverride(c *gin.Context) {
	var req service.UpsertOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	override, err := h.roleService.UpsertOverride(c.Request.Context(), c.GetString("userID"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	middleware.ClearCapabilityCache(req.RoleName)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, override))
}

// DeleteOverride removes one (role, capability) override
// @Summary      Delete permission override
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        role_name   query  string  true  "Role name"
// @Param        capability  query  string  true  "Capability code"
// @Success      200  {object}  response.Response
// @Router       /api/permission-overrides [delete]
func (h *RoleHandler) DeleteOverride(c *gin.Context) {
	roleName := c.Query("role_name")
	capability := c.Query("capability")
	if roleName == "" || capability == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "role_name and capability are required"))
		return
	}

	if err := h.roleService.DeleteOverride(c.Request.Context(), c.GetString("userID"), roleName, capability); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	middleware.ClearCapabilityCache(roleName)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Override deleted successfully"))
}

// ResolveCapabilities returns the complete effective capability map
// @Summary      Resolve role capabilities
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        role  path  string  true  "Role name"
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/capabilities/{role} [get]
func (h *RoleHandler) ResolveCapabilities(c *gin.Context) {
	caps, err := h.roleService.ResolveForRole(c.Request.Context(), c.Param("role"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, caps))
}
