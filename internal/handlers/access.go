package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"notification-service/internal/models"
	"notification-service/internal/telemetry"
)

type RoleService interface {
	Create(ctx context.Context, name, description string) (models.Role, error)
	Get(ctx context.Context, id int) (models.Role, error)
	List(ctx context.Context, page models.Page) ([]models.Role, error)
	ListArchived(ctx context.Context, page models.Page) ([]models.Role, error)
	Update(ctx context.Context, id int, name, description string) (models.Role, error)
	Archive(ctx context.Context, id int) (models.Role, error)
	Recover(ctx context.Context, id int) (models.Role, error)
	Assign(ctx context.Context, accountID, roleID int) error
	Unassign(ctx context.Context, accountID, roleID int) (bool, error)
	RolesForAccount(ctx context.Context, accountID int) ([]models.Role, error)
}

type PermissionService interface {
	Create(ctx context.Context, name, description string) (models.Permission, error)
	Get(ctx context.Context, id int) (models.Permission, error)
	List(ctx context.Context, page models.Page) ([]models.Permission, error)
	ListArchived(ctx context.Context, page models.Page) ([]models.Permission, error)
	Update(ctx context.Context, id int, name, description string) (models.Permission, error)
	Archive(ctx context.Context, id int) (models.Permission, error)
	Recover(ctx context.Context, id int) (models.Permission, error)
	Attach(ctx context.Context, roleID, permissionID int) error
	Detach(ctx context.Context, roleID, permissionID int) (bool, error)
	PermissionsForRole(ctx context.Context, roleID int) ([]models.Permission, error)
}

// AccessHandler manages roles, permissions and their assignments.
type AccessHandler struct {
	roles       RoleService
	permissions PermissionService
	audit       *telemetry.AuditEmitter
}

// NewAccessHandler builds an AccessHandler.
func NewAccessHandler(roles RoleService, permissions PermissionService, audit *telemetry.AuditEmitter) *AccessHandler {
	return &AccessHandler{roles: roles, permissions: permissions, audit: audit}
}

type namedRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Register mounts the routes on r.
func (h *AccessHandler) Register(r gin.IRouter) {
	r.POST("/roles", h.CreateRole)
	r.GET("/roles", h.ListRoles)
	r.GET("/roles/archived", h.ListArchivedRoles)
	r.GET("/roles/:id", h.GetRole)
	r.PUT("/roles/:id", h.UpdateRole)
	r.POST("/roles/:id/archive", h.ArchiveRole)
	r.POST("/roles/:id/recover", h.RecoverRole)
	r.GET("/roles/:id/permissions", h.ListRolePermissions)
	r.PUT("/roles/:id/permissions/:permission_id", h.AttachPermission)
	r.DELETE("/roles/:id/permissions/:permission_id", h.DetachPermission)

	r.GET("/accounts/:account_id/roles", h.ListAccountRoles)
	r.PUT("/accounts/:account_id/roles/:role_id", h.AssignRole)
	r.DELETE("/accounts/:account_id/roles/:role_id", h.UnassignRole)

	r.POST("/permissions", h.CreatePermission)
	r.GET("/permissions", h.ListPermissions)
	r.GET("/permissions/archived", h.ListArchivedPermissions)
	r.GET("/permissions/:id", h.GetPermission)
	r.PUT("/permissions/:id", h.UpdatePermission)
	r.POST("/permissions/:id/archive", h.ArchivePermission)
	r.POST("/permissions/:id/recover", h.RecoverPermission)
}

func (h *AccessHandler) CreateRole(c *gin.Context) {
	var req namedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, err := h.roles.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondError(c, err, "could not create role")
		return
	}
	emitAudit(c, h.audit, "INFO", "Role created")
	c.JSON(http.StatusCreated, role)
}

func (h *AccessHandler) ListRoles(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	roles, err := h.roles.List(c.Request.Context(), page)
	if err != nil {
		respondError(c, err, "failed to load roles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (h *AccessHandler) ListArchivedRoles(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	roles, err := h.roles.ListArchived(c.Request.Context(), page)
	if err != nil {
		respondError(c, err, "failed to load roles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (h *AccessHandler) GetRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	role, err := h.roles.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to load role")
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *AccessHandler) UpdateRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req namedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, err := h.roles.Update(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		respondError(c, err, "could not update role")
		return
	}
	emitAudit(c, h.audit, "INFO", "Role updated")
	c.JSON(http.StatusOK, role)
}

func (h *AccessHandler) ArchiveRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	role, err := h.roles.Archive(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "could not archive role")
		return
	}
	emitAudit(c, h.audit, "INFO", "Role archived")
	c.JSON(http.StatusOK, role)
}

func (h *AccessHandler) RecoverRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	role, err := h.roles.Recover(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "could not recover role")
		return
	}
	emitAudit(c, h.audit, "INFO", "Role recovered")
	c.JSON(http.StatusOK, role)
}

func (h *AccessHandler) ListRolePermissions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	perms, err := h.permissions.PermissionsForRole(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to load permissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

func (h *AccessHandler) AttachPermission(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	permissionID, ok := parseIDParam(c, "permission_id")
	if !ok {
		return
	}
	if err := h.permissions.Attach(c.Request.Context(), roleID, permissionID); err != nil {
		respondError(c, err, "could not attach permission")
		return
	}
	emitAudit(c, h.audit, "INFO", "Permission attached to role")
	c.Status(http.StatusNoContent)
}

func (h *AccessHandler) DetachPermission(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	permissionID, ok := parseIDParam(c, "permission_id")
	if !ok {
		return
	}
	removed, err := h.permissions.Detach(c.Request.Context(), roleID, permissionID)
	if err != nil {
		respondError(c, err, "could not detach permission")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "permission not attached"})
		return
	}
	emitAudit(c, h.audit, "INFO", "Permission detached from role")
	c.Status(http.StatusNoContent)
}

func (h *AccessHandler) ListAccountRoles(c *gin.Context) {
	accountID, ok := parseIDParam(c, "account_id")
	if !ok {
		return
	}
	roles, err := h.roles.RolesForAccount(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err, "failed to load roles")
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (h *AccessHandler) AssignRole(c *gin.Context) {
	accountID, ok := parseIDParam(c, "account_id")
	if !ok {
		return
	}
	roleID, ok := parseIDParam(c, "role_id")
	if !ok {
		return
	}
	if err := h.roles.Assign(c.Request.Context(), accountID, roleID); err != nil {
		respondError(c, err, "could not assign role")
		return
	}
	emitAudit(c, h.audit, "INFO", "Role assigned")
	c.Status(http.StatusNoContent)
}

func (h *AccessHandler) UnassignRole(c *gin.Context) {
	accountID, ok := parseIDParam(c, "account_id")
	if !ok {
		return
	}
	roleID, ok := parseIDParam(c, "role_id")
	if !ok {
		return
	}
	removed, err := h.roles.Unassign(c.Request.Context(), accountID, roleID)
	if err != nil {
		respondError(c, err, "could not unassign role")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "role not assigned"})
		return
	}
	emitAudit(c, h.audit, "INFO", "Role unassigned")
	c.Status(http.StatusNoContent)
}

func (h *AccessHandler) CreatePermission(c *gin.Context) {
	var req namedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	perm, err := h.permissions.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondError(c, err, "could not create permission")
		return
	}
	emitAudit(c, h.audit, "INFO", "Permission created")
	c.JSON(http.StatusCreated, perm)
}

func (h *AccessHandler) ListPermissions(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	perms, err := h.permissions.List(c.Request.Context(), page)
	if err != nil {
		respondError(c, err, "failed to load permissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

func (h *AccessHandler) ListArchivedPermissions(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	perms, err := h.permissions.ListArchived(c.Request.Context(), page)
	if err != nil {
		respondError(c, err, "failed to load permissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

func (h *AccessHandler) GetPermission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	perm, err := h.permissions.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to load permission")
		return
	}
	c.JSON(http.StatusOK, perm)
}

func (h *AccessHandler) UpdatePermission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req namedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	perm, err := h.permissions.Update(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		respondError(c, err, "could not update permission")
		return
	}
	emitAudit(c, h.audit, "INFO", "Permission updated")
	c.JSON(http.StatusOK, perm)
}

func (h *AccessHandler) ArchivePermission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	perm, err := h.permissions.Archive(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "could not archive permission")
		return
	}
	emitAudit(c, h.audit, "INFO", "Permission archived")
	c.JSON(http.StatusOK, perm)
}

func (h *AccessHandler) RecoverPermission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	perm, err := h.permissions.Recover(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "could not recover permission")
		return
	}
	emitAudit(c, h.audit, "INFO", "Permission recovered")
	c.JSON(http.StatusOK, perm)
}
