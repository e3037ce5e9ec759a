package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsdesk/internal/apperr"
	"opsdesk/internal/auth"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
)

// Signup creates a tenant with its first admin and returns a session.
func (h *Handler) Signup(c *gin.Context) {
	if !h.auth.SignupEnabled() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Signup is disabled"})
		return
	}
	var req auth.SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	tenant, user, session, err := h.auth.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"tenant":     tenant,
		"user":       user,
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
	})
}

// Login exchanges tenant, username and password for a session token.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	session, user, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user": user, "token": session.Token, "expires_at": session.ExpiresAt})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the caller with their role and the tenant's effective entitlements.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)
	role, err := h.rbac.GetRole(ctx, user.TenantID, user.RoleID)
	if err != nil {
		respondError(c, err)
		return
	}
	set, err := h.entitlements.Resolve(ctx, user.TenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "role": role, "entitlements": set.Sorted()})
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required"`
	RoleID   uint   `json:"role_id" binding:"required"`
	TeamID   *uint  `json:"team_id"`
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *Handler) userRecords() *resource[models.User, *models.User] {
	r := newResource[models.User](h, "users",
		map[string]string{"username": "username", "email": "email"},
		map[string]string{"role_id": "role_id", "team_id": "team_id", "is_active": "is_active"})
	r.validate = func(ctx context.Context, tenantID uint, u *models.User) error {
		if err := store.MustExist[models.Role](ctx, h.db, tenantID, u.RoleID, "role_id"); err != nil {
			return err
		}
		if u.TeamID != nil {
			return store.MustExist[models.Team](ctx, h.db, tenantID, *u.TeamID, "team_id")
		}
		return nil
	}
	r.guard = func(ctx context.Context, prev, next *models.User) error {
		next.Password = prev.Password
		if next.IsActive && !prev.IsActive {
			set, err := h.entitlements.Resolve(ctx, prev.TenantID)
			if err != nil {
				return err
			}
			seats, err := r.repo.Count(ctx, prev.TenantID, map[string]interface{}{"is_active": true})
			if err != nil {
				return err
			}
			return set.CheckLimit("seats", seats)
		}
		return nil
	}
	return r
}

// CreateUser adds a user through the auth service so the password is hashed
// and the seat limit applies.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user := &models.User{Username: req.Username, Email: req.Email, RoleID: req.RoleID, TeamID: req.TeamID}
	if err := h.auth.CreateUser(c.Request.Context(), tenantID(c), user, req.Password); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("user created", zap.Uint("tenant_id", user.TenantID), zap.Uint("user_id", user.ID), zap.Uint("role_id", user.RoleID))
	c.JSON(http.StatusCreated, user)
}

// SetPassword changes a password. Users may always change their own; changing
// someone else's needs users/manage.
func (h *Handler) SetPassword(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)
	if id != user.ID {
		if _, err := h.rbac.Resolve(ctx, user, "users", models.ActionManage); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := h.auth.SetPassword(ctx, user.TenantID, id, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteUser soft-deletes a user other than the caller.
func (h *Handler) deleteUser(r *resource[models.User, *models.User]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if id == currentUser(c).ID {
			respondError(c, fmt.Errorf("%w: you cannot delete yourself", apperr.ErrConflict))
			return
		}
		r.remove(c)
	}
}
