package handlers

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
)

// target is a record type that comments and status history hang off. Access to
// them follows the view grant of the target's own module.
type target struct {
	module string
	get    func(ctx context.Context, db *gorm.DB, tenantID, id uint, ownerIDs []uint) error
}

func targetOf[T any, PT interface {
	*T
	models.Tenanted
}](module string) target {
	_, owned := any(PT(new(T))).(models.Owned)
	return target{
		module: module,
		get: func(ctx context.Context, db *gorm.DB, tenantID, id uint, ownerIDs []uint) error {
			if !owned {
				ownerIDs = nil
			}
			_, err := store.New[T](db, nil).Get(ctx, tenantID, id, ownerIDs)
			return err
		},
	}
}

var targets = map[string]target{
	"appraisal": targetOf[models.Appraisal]("appraisals"),
	"candidate": targetOf[models.Candidate]("candidates"),
	"employee":  targetOf[models.Employee]("employees"),
	"goal":      targetOf[models.Goal]("goals"),
	"interview": targetOf[models.Interview]("interviews"),
	"lead":      targetOf[models.Lead]("leads"),
	"offer":     targetOf[models.Offer]("offers"),
	"project":   targetOf[models.Project]("projects"),
	"sprint":    targetOf[models.Sprint]("sprints"),
}

// visible returns ErrNotFound unless user may view entityType/id, both by
// module permission and by owner scope.
func (h *Handler) visible(ctx context.Context, user *models.User, entityType string, id uint) error {
	t, ok := targets[entityType]
	if !ok {
		return apperr.Invalid("entity_type", "%q does not accept comments", entityType)
	}
	grant, err := h.rbac.Resolve(ctx, user, t.module, models.ActionView)
	if err != nil {
		return err
	}
	if err := t.get(ctx, h.db, user.TenantID, id, grant.OwnerIDs); err != nil {
		return fmt.Errorf("%s %d: %w", entityType, id, err)
	}
	return nil
}
