package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
)

type roleRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	Permissions []models.Permission `json:"permissions"`
}

func (r roleRequest) role() *models.Role {
	return &models.Role{Name: r.Name, Description: r.Description, Permissions: r.Permissions}
}

func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.rbac.ListRoles(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (h *Handler) GetRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	role, err := h.rbac.GetRole(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *Handler) CreateRole(c *gin.Context) {
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}
	role := req.role()
	if err := h.rbac.CreateRole(c.Request.Context(), tenantID(c), role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

func (h *Handler) UpdateRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req roleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.rbac.UpdateRole(c.Request.Context(), tenantID(c), id, req.role())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *Handler) DeleteRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.rbac.DeleteRole(c.Request.Context(), tenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListEntitlements returns the tenant's plan and effective features.
func (h *Handler) ListEntitlements(c *gin.Context) {
	ctx := c.Request.Context()
	var tenant models.Tenant
	if err := h.db.WithContext(ctx).First(&tenant, tenantID(c)).Error; err != nil {
		respondError(c, apperr.FromDB(err))
		return
	}
	set, err := h.entitlements.Resolve(ctx, tenant.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": tenant.Plan, "features": set.Sorted()})
}

type overrideRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
	Limit   *int  `json:"limit"`
}

func (h *Handler) OverrideEntitlement(c *gin.Context) {
	var req overrideRequest
	if !bindJSON(c, &req) {
		return
	}
	ent, err := h.entitlements.Override(c.Request.Context(), tenantID(c), c.Param("feature"), *req.Enabled, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ent)
}

func (h *Handler) ClearEntitlement(c *gin.Context) {
	if err := h.entitlements.ClearOverride(c.Request.Context(), tenantID(c), c.Param("feature")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type planRequest struct {
	Plan string `json:"plan" binding:"required"`
}

func (h *Handler) ChangePlan(c *gin.Context) {
	var req planRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.entitlements.ChangePlan(c.Request.Context(), tenantID(c), req.Plan); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": req.Plan})
}

func (h *Handler) Dashboard(c *gin.Context) {
	summary, err := h.dashboard.Summary(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
