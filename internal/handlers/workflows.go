package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/workflow"
)

func (h *Handler) ListWorkflows(c *gin.Context) {
	list, err := h.workflows.List(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetWorkflow returns the definition with its derived statuses.
func (h *Handler) GetWorkflow(c *gin.Context) {
	wf, err := h.workflows.Get(c.Request.Context(), tenantID(c), c.Param("entity"))
	if err != nil {
		respondError(c, err)
		return
	}
	g, err := workflow.Build(wf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflow": wf, "statuses": g.Statuses(), "terminal": g.Terminal()})
}

type workflowRequest struct {
	Name          string              `json:"name"`
	InitialStatus string              `json:"initial_status" binding:"required"`
	Transitions   []models.Transition `json:"transitions" binding:"dive"`
}

// PutWorkflow replaces the definition for :entity.
func (h *Handler) PutWorkflow(c *gin.Context) {
	var req workflowRequest
	if !bindJSON(c, &req) {
		return
	}
	wf := &models.Workflow{
		EntityType:    c.Param("entity"),
		Name:          req.Name,
		InitialStatus: req.InitialStatus,
		Transitions:   req.Transitions,
	}
	saved, err := h.workflows.Put(c.Request.Context(), tenantID(c), wf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// Reachable lists the statuses reachable from ?from=, defaulting to the
// initial status.
func (h *Handler) Reachable(c *gin.Context) {
	g, err := h.workflows.Graph(c.Request.Context(), tenantID(c), c.Param("entity"))
	if err != nil {
		respondError(c, err)
		return
	}
	from := c.DefaultQuery("from", g.Initial())
	c.JSON(http.StatusOK, gin.H{
		"from":      from,
		"next":      g.Next(from),
		"reachable": g.Reachable(from),
		"terminal":  g.Terminal(),
	})
}

// History lists the status changes of one workflow-driven record. The record
// must be visible to the caller under its module's view grant.
func (h *Handler) History(c *gin.Context) {
	entity := c.Param("entity")
	if !slices.Contains(workflow.EntityTypes(), entity) {
		respondError(c, apperr.Invalid("entity", "%q has no workflow", entity))
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user := currentUser(c)
	if err := h.visible(ctx, user, entity, id); err != nil {
		respondError(c, err)
		return
	}
	changes, err := h.workflows.History(ctx, user.TenantID, entity, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, changes)
}
