package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/sprint"
	"opsdesk/internal/store"
)

// withInitialStatus inserts a workflow-driven record in its workflow's
// initial status.
func withInitialStatus[T any, PT interface {
	*T
	models.Tenanted
}](h *Handler, r *resource[T, PT], entityType string, set func(PT, string)) func(context.Context, *models.User, PT) error {
	return func(ctx context.Context, user *models.User, rec PT) error {
		status, err := h.workflows.InitialStatus(ctx, user.TenantID, entityType)
		if err != nil {
			return err
		}
		set(rec, status)
		return r.repo.Create(ctx, user.TenantID, (*T)(rec))
	}
}

func (h *Handler) leadRecords() *resource[models.Lead, *models.Lead] {
	r := newResource[models.Lead](h, "leads",
		map[string]string{"name": "name", "company": "company", "value": "value", "status": "status"},
		map[string]string{"status": "status", "company": "company", "source": "source"})
	r.insert = withInitialStatus(h, r, "lead", func(l *models.Lead, s string) { l.Status = s })
	r.guard = func(_ context.Context, prev, next *models.Lead) error {
		return unchanged("status", prev.Status, next.Status, "POST /leads/:id/transition")
	}
	return r
}

func (h *Handler) candidateRecords() *resource[models.Candidate, *models.Candidate] {
	r := newResource[models.Candidate](h, "candidates",
		map[string]string{"name": "name", "stage": "stage", "position": "position"},
		map[string]string{"stage": "stage", "position": "position", "source": "source"})
	r.insert = withInitialStatus(h, r, "candidate", func(c *models.Candidate, s string) { c.Stage = s })
	r.guard = func(_ context.Context, prev, next *models.Candidate) error {
		return unchanged("stage", prev.Stage, next.Stage, "POST /candidates/:id/transition")
	}
	return r
}

func (h *Handler) offerRecords() *resource[models.Offer, *models.Offer] {
	r := newResource[models.Offer](h, "offers",
		map[string]string{"salary": "salary", "status": "status", "start_date": "start_date"},
		map[string]string{"status": "status", "candidate_id": "candidate_id"})
	r.validate = func(ctx context.Context, tenantID uint, o *models.Offer) error {
		return store.MustExist[models.Candidate](ctx, h.db, tenantID, o.CandidateID, "candidate_id")
	}
	r.insert = withInitialStatus(h, r, "offer", func(o *models.Offer, s string) { o.Status = s })
	r.guard = func(_ context.Context, prev, next *models.Offer) error {
		if err := unchanged("status", prev.Status, next.Status, "POST /offers/:id/transition"); err != nil {
			return err
		}
		return unchanged("candidate_id", prev.CandidateID, next.CandidateID, "a new offer")
	}
	return r
}

func (h *Handler) employeeRecords() *resource[models.Employee, *models.Employee] {
	r := newResource[models.Employee](h, "employees",
		map[string]string{"first_name": "first_name", "last_name": "last_name", "department": "department", "hire_date": "hire_date"},
		map[string]string{"status": "status", "department": "department", "manager_id": "manager_id"})
	r.validate = func(ctx context.Context, tenantID uint, e *models.Employee) error {
		if e.ManagerID != nil {
			if e.ID != 0 && *e.ManagerID == e.ID {
				return apperr.Invalid("manager_id", "an employee cannot manage themselves")
			}
			if err := store.MustExist[models.Employee](ctx, h.db, tenantID, *e.ManagerID, "manager_id"); err != nil {
				return err
			}
		}
		if e.UserID != nil {
			return store.MustExist[models.User](ctx, h.db, tenantID, *e.UserID, "user_id")
		}
		return nil
	}
	r.insert = func(ctx context.Context, user *models.User, e *models.Employee) error {
		return h.onboarding.Hire(ctx, user.TenantID, e)
	}
	r.guard = func(_ context.Context, prev, next *models.Employee) error {
		return unchanged("status", prev.Status, next.Status, "POST /employees/:id/transition")
	}
	return r
}

func (h *Handler) interviewRecords() *resource[models.Interview, *models.Interview] {
	r := newResource[models.Interview](h, "interviews",
		map[string]string{"scheduled_at": "scheduled_at", "rating": "rating"},
		map[string]string{"candidate_id": "candidate_id", "interviewer_id": "interviewer_id", "kind": "kind"})
	r.validate = func(ctx context.Context, tenantID uint, i *models.Interview) error {
		if err := store.MustExist[models.Candidate](ctx, h.db, tenantID, i.CandidateID, "candidate_id"); err != nil {
			return err
		}
		if i.InterviewerID != nil {
			return store.MustExist[models.User](ctx, h.db, tenantID, *i.InterviewerID, "interviewer_id")
		}
		return nil
	}
	return r
}

func (h *Handler) announcementRecords() *resource[models.Announcement, *models.Announcement] {
	r := newResource[models.Announcement](h, "announcements",
		map[string]string{"title": "title", "published_at": "published_at", "pinned": "pinned"},
		map[string]string{"pinned": "pinned", "author_id": "author_id"})
	r.insert = func(ctx context.Context, user *models.User, a *models.Announcement) error {
		if a.AuthorID == nil {
			a.AuthorID = &user.ID
		}
		return r.repo.Create(ctx, user.TenantID, a)
	}
	return r
}

func (h *Handler) goalRecords() *resource[models.Goal, *models.Goal] {
	r := newResource[models.Goal](h, "goals",
		map[string]string{"title": "title", "progress": "progress", "due_date": "due_date"},
		map[string]string{"employee_id": "employee_id", "status": "status"})
	r.validate = func(ctx context.Context, tenantID uint, g *models.Goal) error {
		return store.MustExist[models.Employee](ctx, h.db, tenantID, g.EmployeeID, "employee_id")
	}
	return r
}

func (h *Handler) appraisalRecords() *resource[models.Appraisal, *models.Appraisal] {
	r := newResource[models.Appraisal](h, "appraisals",
		map[string]string{"period": "period", "rating": "rating"},
		map[string]string{"employee_id": "employee_id", "reviewer_id": "reviewer_id", "period": "period", "status": "status"})
	r.validate = func(ctx context.Context, tenantID uint, a *models.Appraisal) error {
		if err := store.MustExist[models.Employee](ctx, h.db, tenantID, a.EmployeeID, "employee_id"); err != nil {
			return err
		}
		if a.ReviewerID != nil {
			return store.MustExist[models.User](ctx, h.db, tenantID, *a.ReviewerID, "reviewer_id")
		}
		return nil
	}
	return r
}

func (h *Handler) projectRecords() *resource[models.Project, *models.Project] {
	r := newResource[models.Project](h, "projects",
		map[string]string{"name": "name", "key": `"key"`},
		map[string]string{"key": `"key"`})
	r.insert = func(ctx context.Context, user *models.User, p *models.Project) error {
		set, err := h.entitlements.Resolve(ctx, user.TenantID)
		if err != nil {
			return err
		}
		n, err := r.repo.Count(ctx, user.TenantID, nil)
		if err != nil {
			return err
		}
		if err := set.CheckLimit("projects", n); err != nil {
			return err
		}
		return r.repo.Create(ctx, user.TenantID, p)
	}
	return r
}

func (h *Handler) sprintRecords() *resource[models.Sprint, *models.Sprint] {
	r := newResource[models.Sprint](h, "sprints",
		map[string]string{"name": "name", "start_date": "start_date", "end_date": "end_date"},
		map[string]string{"project_id": "project_id", "status": "status"})
	r.validate = func(ctx context.Context, tenantID uint, sp *models.Sprint) error {
		return sprint.Validate(ctx, h.db, tenantID, sp)
	}
	r.insert = func(ctx context.Context, user *models.User, sp *models.Sprint) error {
		return h.sprints.Create(ctx, user.TenantID, sp)
	}
	r.guard = func(_ context.Context, prev, next *models.Sprint) error {
		if err := unchanged("status", prev.Status, next.Status, "POST /sprints/:id/start or /complete"); err != nil {
			return err
		}
		return unchanged("project_id", prev.ProjectID, next.ProjectID, "a new sprint")
	}
	return r
}

func (h *Handler) teamRecords() *resource[models.Team, *models.Team] {
	r := newResource[models.Team](h, "teams", map[string]string{"name": "name"}, nil)
	r.validate = func(ctx context.Context, tenantID uint, t *models.Team) error {
		if t.LeadID != nil {
			return store.MustExist[models.User](ctx, h.db, tenantID, *t.LeadID, "lead_id")
		}
		return nil
	}
	return r
}

func (h *Handler) commentRecords() *resource[models.Comment, *models.Comment] {
	r := newResource[models.Comment](h, "comments", nil,
		map[string]string{"entity_type": "entity_type", "entity_id": "entity_id", "author_id": "owner_id"})
	r.insert = func(ctx context.Context, user *models.User, cm *models.Comment) error {
		if err := h.visible(ctx, user, cm.EntityType, cm.EntityID); err != nil {
			return err
		}
		return h.comments.Create(ctx, user.TenantID, user.ID, cm)
	}
	r.guard = func(_ context.Context, prev, next *models.Comment) error {
		next.EntityType, next.EntityID = prev.EntityType, prev.EntityID
		next.ParentID, next.OwnerID = prev.ParentID, prev.OwnerID
		return nil
	}
	r.visible = func(ctx context.Context, user *models.User, cm *models.Comment) error {
		return h.visible(ctx, user, cm.EntityType, cm.EntityID)
	}
	// comments are only listed per entity
	r.narrow = func(ctx context.Context, user *models.User, opts store.ListOptions) error {
		entityType, _ := opts.Filters["entity_type"].(string)
		entityID, _ := opts.Filters["entity_id"].(uint)
		if entityType == "" || entityID == 0 {
			return apperr.Invalid("entity_type", "entity_type and entity_id are required")
		}
		return h.visible(ctx, user, entityType, entityID)
	}
	return r
}

type transitionRequest struct {
	To   string `json:"to" binding:"required"`
	Note string `json:"note"`
}

// transition applies a workflow transition to the :id record after checking
// it is inside the caller's scope.
func (r *resource[T, PT]) transition(h *Handler, entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := r.load(c)
		if !ok {
			return
		}
		var req transitionRequest
		if !bindJSON(c, &req) {
			return
		}

		ctx := c.Request.Context()
		user := currentUser(c)
		id := PT(rec).GetID()
		change, err := h.workflows.Apply(ctx, user.TenantID, entityType, id, req.To, &user.ID, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		updated, err := r.repo.Get(ctx, user.TenantID, id, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"change": change, "record": updated})
	}
}
