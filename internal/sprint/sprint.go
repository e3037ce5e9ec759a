// Package sprint manages sprint lifecycles. A project has at most one active
// sprint; the check runs inside the activating transaction and a partial
// unique index on (project_id) WHERE status = 'active' backs it up.
package sprint

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
)

// Service creates sprints and moves them through planned, active and completed.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService returns a sprint Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Validate checks the fields a client controls on create and update.
func Validate(ctx context.Context, db *gorm.DB, tenantID uint, sp *models.Sprint) error {
	if sp.StartDate != nil && sp.EndDate != nil && sp.EndDate.Before(*sp.StartDate) {
		return apperr.Invalid("end_date", "must not be before start_date")
	}
	return store.MustExist[models.Project](ctx, db, tenantID, sp.ProjectID, "project_id")
}

// Create inserts a sprint in the planned state.
func (s *Service) Create(ctx context.Context, tenantID uint, sp *models.Sprint) error {
	if err := Validate(ctx, s.db, tenantID, sp); err != nil {
		return err
	}
	sp.ID = 0
	sp.Status = models.SprintPlanned
	return store.New[models.Sprint](s.db, nil).Create(ctx, tenantID, sp)
}

// Start activates a planned sprint.
func (s *Service) Start(ctx context.Context, tenantID, id uint) (*models.Sprint, error) {
	var out *models.Sprint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sp, err := store.New[models.Sprint](tx, nil).Get(ctx, tenantID, id, nil)
		if err != nil {
			return err
		}
		if sp.Status != models.SprintPlanned {
			return fmt.Errorf("%w: sprint %d is %s, only planned sprints can start",
				apperr.ErrInvalidTransition, sp.ID, sp.Status)
		}

		var active models.Sprint
		res := store.Scoped[models.Sprint](tx, tenantID).
			Where("project_id = ? AND status = ? AND id <> ?", sp.ProjectID, models.SprintActive, sp.ID).
			Limit(1).
			Find(&active)
		if res.Error != nil {
			return fmt.Errorf("find active sprint: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			s.logger.Warn("refused second active sprint",
				zap.Uint("tenant_id", tenantID),
				zap.Uint("project_id", sp.ProjectID),
				zap.Uint("active_sprint_id", active.ID),
				zap.Uint("sprint_id", sp.ID))
			return fmt.Errorf("%w: sprint %q is already active in project %d",
				apperr.ErrConflict, active.Name, sp.ProjectID)
		}

		now := time.Now()
		updates := map[string]interface{}{"status": models.SprintActive, "updated_at": now}
		if sp.StartDate == nil {
			updates["start_date"] = now
			sp.StartDate = &now
		}
		if err := s.swap(tx, tenantID, sp.ID, models.SprintPlanned, updates); err != nil {
			return err
		}
		sp.Status = models.SprintActive
		sp.UpdatedAt = now
		out = sp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete closes an active sprint.
func (s *Service) Complete(ctx context.Context, tenantID, id uint) (*models.Sprint, error) {
	var out *models.Sprint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sp, err := store.New[models.Sprint](tx, nil).Get(ctx, tenantID, id, nil)
		if err != nil {
			return err
		}
		if sp.Status != models.SprintActive {
			return fmt.Errorf("%w: sprint %d is %s, only active sprints can complete",
				apperr.ErrInvalidTransition, sp.ID, sp.Status)
		}
		now := time.Now()
		updates := map[string]interface{}{"status": models.SprintCompleted, "updated_at": now}
		if sp.EndDate == nil {
			updates["end_date"] = now
			sp.EndDate = &now
		}
		if err := s.swap(tx, tenantID, sp.ID, models.SprintActive, updates); err != nil {
			return err
		}
		sp.Status = models.SprintCompleted
		sp.UpdatedAt = now
		out = sp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// swap applies updates only if the sprint is still in status from.
func (s *Service) swap(tx *gorm.DB, tenantID, id uint, from string, updates map[string]interface{}) error {
	res := store.Scoped[models.Sprint](tx, tenantID).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		if apperr.IsUniqueViolation(res.Error) {
			return fmt.Errorf("%w: another sprint became active", apperr.ErrConflict)
		}
		return fmt.Errorf("update sprint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: sprint %d changed concurrently", apperr.ErrConflict, id)
	}
	return nil
}

// Active returns the project's active sprint, or ErrNotFound.
func (s *Service) Active(ctx context.Context, tenantID, projectID uint) (*models.Sprint, error) {
	var sp models.Sprint
	err := store.Scoped[models.Sprint](s.db.WithContext(ctx), tenantID).
		Where("project_id = ? AND status = ?", projectID, models.SprintActive).
		First(&sp).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return &sp, nil
}
