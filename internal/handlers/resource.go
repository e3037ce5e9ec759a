package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
)

// resource serves list/get/create/update/delete for one record type. Records
// embedding models.Owner are restricted to the owners in the request's grant.
type resource[T any, PT interface {
	*T
	models.Tenanted
}] struct {
	module  string
	repo    *store.Repository[T]
	filters map[string]string
	owned   bool

	// validate checks references on create and update.
	validate func(ctx context.Context, tenantID uint, rec PT) error
	// insert replaces repo.Create when creation goes through a service.
	insert func(ctx context.Context, user *models.User, rec PT) error
	// guard rejects updates of fields that only change through dedicated
	// endpoints and restores server-owned ones.
	guard func(ctx context.Context, prev, next PT) error
	// visible hides records whose parent the caller cannot see.
	visible func(ctx context.Context, user *models.User, rec PT) error
	// narrow checks list filters before the query runs.
	narrow func(ctx context.Context, user *models.User, opts store.ListOptions) error
}

func newResource[T any, PT interface {
	*T
	models.Tenanted
}](h *Handler, module string, sorts, filters map[string]string) *resource[T, PT] {
	_, owned := any(PT(new(T))).(models.Owned)
	if owned {
		if filters == nil {
			filters = map[string]string{}
		}
		filters["owner_id"] = "owner_id"
	}
	return &resource[T, PT]{
		module:  module,
		repo:    store.New[T](h.db, sorts),
		filters: filters,
		owned:   owned,
	}
}

// scope is the owner restriction for this request; nil for unowned records.
func (r *resource[T, PT]) scope(c *gin.Context) []uint {
	if !r.owned {
		return nil
	}
	return currentGrant(c).OwnerIDs
}

// load fetches the :id record within the request's scope.
func (r *resource[T, PT]) load(c *gin.Context) (*T, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	rec, err := r.repo.Get(c.Request.Context(), tenantID(c), id, r.scope(c))
	if err == nil && r.visible != nil {
		err = r.visible(c.Request.Context(), currentUser(c), PT(rec))
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return rec, true
}

func (r *resource[T, PT]) checkOwner(c *gin.Context, rec PT) error {
	o, ok := any(rec).(models.Owned)
	if !ok {
		return nil
	}
	if !currentGrant(c).Allows(o.GetOwnerID()) {
		return fmt.Errorf("%w: owner is outside your %s scope", apperr.ErrForbidden, currentGrant(c).Scope)
	}
	return nil
}

func (r *resource[T, PT]) list(c *gin.Context) {
	opts, ok := listOptions(c, r.filters)
	if !ok {
		return
	}
	opts.OwnerIDs = r.scope(c)
	if r.narrow != nil {
		if err := r.narrow(c.Request.Context(), currentUser(c), opts); err != nil {
			respondError(c, err)
			return
		}
	}
	page, err := r.repo.List(c.Request.Context(), tenantID(c), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (r *resource[T, PT]) get(c *gin.Context) {
	rec, ok := r.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *resource[T, PT]) create(c *gin.Context) {
	rec := new(T)
	if !bindJSON(c, rec) {
		return
	}
	p := PT(rec)
	p.Protect(models.Base{})

	user := currentUser(c)
	if o, ok := any(p).(models.Owned); ok {
		o.SetOwner(user.ID)
	}
	if err := r.checkOwner(c, p); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if r.validate != nil {
		if err := r.validate(ctx, user.TenantID, p); err != nil {
			respondError(c, err)
			return
		}
	}
	var err error
	if r.insert != nil {
		err = r.insert(ctx, user, p)
	} else {
		err = r.repo.Create(ctx, user.TenantID, rec)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (r *resource[T, PT]) update(c *gin.Context) {
	prev, ok := r.load(c)
	if !ok {
		return
	}
	// decode into a second copy so pointer fields of prev stay untouched
	next, err := r.repo.Get(c.Request.Context(), tenantID(c), PT(prev).GetID(), r.scope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if !bindJSON(c, next) {
		return
	}
	PT(next).Protect(PT(prev).GetBase())

	if o, ok := any(PT(next)).(models.Owned); ok && o.GetOwnerID() == nil {
		if owner := any(PT(prev)).(models.Owned).GetOwnerID(); owner != nil {
			o.SetOwner(*owner)
		}
	}
	if err := r.checkOwner(c, PT(next)); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if r.guard != nil {
		if err := r.guard(ctx, PT(prev), PT(next)); err != nil {
			respondError(c, err)
			return
		}
	}
	if r.validate != nil {
		if err := r.validate(ctx, tenantID(c), PT(next)); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := r.repo.Save(ctx, next); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}

func (r *resource[T, PT]) remove(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if r.visible != nil {
		if _, ok := r.load(c); !ok {
			return
		}
	}
	if err := r.repo.SoftDelete(c.Request.Context(), tenantID(c), id, r.scope(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mount registers the CRUD routes under path with per-action permissions.
func (r *resource[T, PT]) mount(h *Handler, g *gin.RouterGroup, path string) {
	g.GET(path, h.Require(r.module, models.ActionView), r.list)
	g.POST(path, h.Require(r.module, models.ActionCreate), r.create)
	g.GET(path+"/:id", h.Require(r.module, models.ActionView), r.get)
	g.PUT(path+"/:id", h.Require(r.module, models.ActionEdit), r.update)
	g.DELETE(path+"/:id", h.Require(r.module, models.ActionDelete), r.remove)
}

// unchanged returns a ValidationError when a field that has its own endpoint
// was modified through a plain update.
func unchanged[V comparable](field string, prev, next V, endpoint string) error {
	if prev != next {
		return apperr.Invalid(field, "cannot be changed by update; use %s", endpoint)
	}
	return nil
}
