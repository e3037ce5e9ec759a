// Package handlers is the gin HTTP layer. Every handler reads the
// authenticated user and the resolved permission grant from the gin context,
// delegates to a service and maps service errors to status codes.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/auth"
	"opsdesk/internal/comment"
	"opsdesk/internal/config"
	"opsdesk/internal/dashboard"
	"opsdesk/internal/entitlement"
	"opsdesk/internal/models"
	"opsdesk/internal/onboarding"
	"opsdesk/internal/rbac"
	"opsdesk/internal/sprint"
	"opsdesk/internal/store"
	"opsdesk/internal/workflow"
)

const (
	ctxUser      = "opsdesk.user"
	ctxToken     = "opsdesk.token"
	ctxGrant     = "opsdesk.grant"
	ctxRequestID = "opsdesk.request_id"
)

// Handler holds the services behind the HTTP API.
type Handler struct {
	db           *gorm.DB
	logger       *zap.Logger
	auth         *auth.Service
	rbac         *rbac.Service
	entitlements *entitlement.Service
	workflows    *workflow.Service
	sprints      *sprint.Service
	comments     *comment.Service
	onboarding   *onboarding.Service
	dashboard    *dashboard.Service
}

// New wires every service on top of db.
func New(db *gorm.DB, cfg *config.Config, logger *zap.Logger) *Handler {
	ents := entitlement.NewService(db, cfg.Plans)
	workflows := workflow.NewService(db, logger)
	return &Handler{
		db:           db,
		logger:       logger,
		auth:         auth.NewService(db, cfg.Auth, cfg.Plans, ents, logger),
		rbac:         rbac.NewService(db),
		entitlements: ents,
		workflows:    workflows,
		sprints:      sprint.NewService(db, logger),
		comments:     comment.NewService(db),
		onboarding:   onboarding.NewService(db, workflows, cfg.Onboarding.Checklist),
		dashboard:    dashboard.NewService(db, workflows, logger),
	}
}

// Auth exposes the auth service so the server can run its session janitor.
func (h *Handler) Auth() *auth.Service { return h.auth }

func currentUser(c *gin.Context) *models.User {
	v, _ := c.Get(ctxUser)
	u, _ := v.(*models.User)
	return u
}

func tenantID(c *gin.Context) uint {
	if u := currentUser(c); u != nil {
		return u.TenantID
	}
	return 0
}

// currentGrant returns the grant set by Require. Without one nothing is visible.
func currentGrant(c *gin.Context) *rbac.Grant {
	v, _ := c.Get(ctxGrant)
	if g, ok := v.(*rbac.Grant); ok {
		return g
	}
	return &rbac.Grant{Scope: models.ScopeOwn, OwnerIDs: []uint{}}
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid " + name + " format"})
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

type pageQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// listOptions reads paging, sorting and the allow-listed filters (query
// parameter to column) from the request.
func listOptions(c *gin.Context, filters map[string]string) (store.ListOptions, bool) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return store.ListOptions{}, false
	}
	opts := store.ListOptions{
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Filters:   map[string]interface{}{},
	}
	for param, column := range filters {
		raw, ok := c.GetQuery(param)
		if !ok || raw == "" {
			continue
		}
		value, err := filterValue(column, raw)
		if err != nil {
			respondError(c, apperr.Invalid(param, "%v", err))
			return store.ListOptions{}, false
		}
		opts.Filters[column] = value
	}
	return opts, true
}

var boolColumns = map[string]bool{"is_active": true, "pinned": true, "done": true}

func filterValue(column, raw string) (interface{}, error) {
	switch {
	case boolColumns[column]:
		return strconv.ParseBool(raw)
	case column == "id" || strings.HasSuffix(column, "_id"):
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, errors.New("must be a numeric id")
		}
		return uint(id), nil
	default:
		return raw, nil
	}
}

// respondError maps service errors to status codes. Unexpected errors are
// attached to the context for the access log and hidden from the client.
func respondError(c *gin.Context, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "field": verr.Field, "details": verr.Message})
	case errors.Is(err, apperr.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Not found", "details": err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "Conflict", "details": err.Error()})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized", "details": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden", "details": err.Error()})
	case errors.Is(err, apperr.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"message": "Transition not allowed", "details": err.Error()})
	case errors.Is(err, apperr.ErrNotEntitled), errors.Is(err, apperr.ErrLimitReached):
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"message": "Upgrade required", "details": err.Error()})
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal error"})
	}
}
