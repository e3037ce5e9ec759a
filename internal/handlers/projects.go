package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"opsdesk/internal/comment"
	"opsdesk/internal/models"
)

// StartSprint activates a planned sprint.
func (h *Handler) StartSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sp, err := h.sprints.Start(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

func (h *Handler) CompleteSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sp, err := h.sprints.Complete(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

type threadQuery struct {
	EntityType string `form:"entity_type" binding:"required"`
	EntityID   uint   `form:"entity_id" binding:"required"`
	Sort       string `form:"sort" binding:"omitempty,oneof=created activity"`
}

// Thread returns the comment tree of one entity the caller can see.
// sort=activity orders the top-level comments by their latest reply.
func (h *Handler) Thread(c *gin.Context) {
	var q threadQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if err := h.visible(ctx, currentUser(c), q.EntityType, q.EntityID); err != nil {
		respondError(c, err)
		return
	}
	roots, err := h.comments.Thread(ctx, tenantID(c), q.EntityType, q.EntityID)
	if err != nil {
		respondError(c, err)
		return
	}
	if q.Sort == "activity" {
		comment.SortByActivity(roots)
	}
	if roots == nil {
		roots = []*comment.Node{}
	}
	c.JSON(http.StatusOK, gin.H{"count": comment.Count(roots), "comments": roots})
}

// onboardingProgress serves the checklist of an employee visible to the caller.
func (h *Handler) onboardingProgress(r *resource[models.Employee, *models.Employee]) gin.HandlerFunc {
	return func(c *gin.Context) {
		emp, ok := r.load(c)
		if !ok {
			return
		}
		p, err := h.onboarding.Progress(c.Request.Context(), emp.TenantID, emp.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func (h *Handler) completeOnboarding(r *resource[models.Employee, *models.Employee]) gin.HandlerFunc {
	return func(c *gin.Context) {
		position, err := strconv.Atoi(c.Param("position"))
		if err != nil || position < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid position format"})
			return
		}
		emp, ok := r.load(c)
		if !ok {
			return
		}
		p, err := h.onboarding.Complete(c.Request.Context(), emp.TenantID, emp.ID, position, currentUser(c).ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
