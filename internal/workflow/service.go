package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
)

// target is the table and column holding the status of a workflow-driven entity.
type target struct {
	table  string
	column string
}

var targets = map[string]target{
	"lead":      {table: "leads", column: "status"},
	"candidate": {table: "candidates", column: "stage"},
	"offer":     {table: "offers", column: "status"},
	"employee":  {table: "employees", column: "status"},
}

// EntityTypes lists the entity types a workflow can be attached to.
func EntityTypes() []string {
	return []string{"candidate", "employee", "lead", "offer"}
}

func lookup(entityType string) (target, error) {
	t, ok := targets[entityType]
	if !ok {
		return target{}, apperr.Invalid("entity_type", "%q has no workflow", entityType)
	}
	return t, nil
}

// Service stores workflow definitions and applies transitions.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService returns a workflow Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// List returns every workflow of the tenant with its transitions.
func (s *Service) List(ctx context.Context, tenantID uint) ([]models.Workflow, error) {
	var out []models.Workflow
	err := store.Scoped[models.Workflow](s.db.WithContext(ctx), tenantID).
		Preload("Transitions").
		Order("entity_type asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return out, nil
}

// Get loads the workflow for entityType.
func (s *Service) Get(ctx context.Context, tenantID uint, entityType string) (*models.Workflow, error) {
	return getWorkflow(s.db.WithContext(ctx), tenantID, entityType)
}

func getWorkflow(db *gorm.DB, tenantID uint, entityType string) (*models.Workflow, error) {
	var wf models.Workflow
	err := store.Scoped[models.Workflow](db, tenantID).
		Preload("Transitions").
		Where("entity_type = ?", entityType).
		First(&wf).Error
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", entityType, apperr.FromDB(err))
	}
	return &wf, nil
}

// Graph loads and indexes the workflow for entityType.
func (s *Service) Graph(ctx context.Context, tenantID uint, entityType string) (*Graph, error) {
	wf, err := s.Get(ctx, tenantID, entityType)
	if err != nil {
		return nil, err
	}
	return Build(wf)
}

// InitialStatus is the status a new record of entityType starts in.
func (s *Service) InitialStatus(ctx context.Context, tenantID uint, entityType string) (string, error) {
	return initialStatus(s.db.WithContext(ctx), tenantID, entityType)
}

func initialStatus(db *gorm.DB, tenantID uint, entityType string) (string, error) {
	wf, err := getWorkflow(db, tenantID, entityType)
	if err != nil {
		return "", err
	}
	return wf.InitialStatus, nil
}

// InitialStatusTx is InitialStatus inside an open transaction.
func (s *Service) InitialStatusTx(tx *gorm.DB, tenantID uint, entityType string) (string, error) {
	return initialStatus(tx, tenantID, entityType)
}

// Put creates or replaces the workflow for wf.EntityType. Records already in
// a status the new definition no longer mentions keep it; they can only leave
// it once a transition out of it is declared again.
func (s *Service) Put(ctx context.Context, tenantID uint, wf *models.Workflow) (*models.Workflow, error) {
	if _, err := lookup(wf.EntityType); err != nil {
		return nil, err
	}
	if _, err := Build(wf); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := getWorkflow(tx, tenantID, wf.EntityType)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			wf.ID = 0
			wf.SetTenant(tenantID)
			for i := range wf.Transitions {
				wf.Transitions[i].ID = 0
			}
			return apperr.FromDB(tx.Create(wf).Error)
		case err != nil:
			return err
		}

		if err := tx.Where("workflow_id = ?", existing.ID).Delete(&models.Transition{}).Error; err != nil {
			return fmt.Errorf("clear transitions: %w", err)
		}
		existing.Name = wf.Name
		existing.InitialStatus = wf.InitialStatus
		existing.Transitions = nil
		if err := tx.Save(existing).Error; err != nil {
			return fmt.Errorf("save workflow: %w", err)
		}
		for i := range wf.Transitions {
			wf.Transitions[i].ID = 0
			wf.Transitions[i].WorkflowID = existing.ID
		}
		if len(wf.Transitions) > 0 {
			if err := tx.Create(&wf.Transitions).Error; err != nil {
				return fmt.Errorf("save transitions: %w", err)
			}
		}
		existing.Transitions = wf.Transitions
		*wf = *existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// Apply moves one record to status to. The current status is read, checked
// against the workflow and swapped in a single conditional update, so a
// concurrent change of the same record fails with ErrConflict instead of
// being overwritten.
func (s *Service) Apply(ctx context.Context, tenantID uint, entityType string, id uint, to string, actorID *uint, note string) (*models.StatusChange, error) {
	var change *models.StatusChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = s.ApplyTx(tx, tenantID, entityType, id, to, actorID, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("status changed",
		zap.Uint("tenant_id", tenantID),
		zap.String("entity_type", entityType),
		zap.Uint("entity_id", id),
		zap.String("from", change.FromStatus),
		zap.String("to", change.ToStatus))
	return change, nil
}

// ApplyTx is Apply inside a transaction owned by the caller.
func (s *Service) ApplyTx(tx *gorm.DB, tenantID uint, entityType string, id uint, to string, actorID *uint, note string) (*models.StatusChange, error) {
	t, err := lookup(entityType)
	if err != nil {
		return nil, err
	}

	var current []string
	err = tx.Table(t.table).
		Where("id = ? AND tenant_id = ? AND is_deleted = ?", id, tenantID, false).
		Pluck(t.column, &current).Error
	if err != nil {
		return nil, fmt.Errorf("read %s status: %w", entityType, err)
	}
	if len(current) == 0 {
		return nil, fmt.Errorf("%w: %s %d", apperr.ErrNotFound, entityType, id)
	}
	from := current[0]

	wf, err := getWorkflow(tx, tenantID, entityType)
	if err != nil {
		return nil, err
	}
	g, err := Build(wf)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(from, to); err != nil {
		return nil, err
	}

	now := time.Now()
	res := tx.Table(t.table).
		Where("id = ? AND tenant_id = ? AND "+t.column+" = ?", id, tenantID, from).
		Updates(map[string]interface{}{t.column: to, "updated_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("update %s status: %w", entityType, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s %d changed concurrently", apperr.ErrConflict, entityType, id)
	}

	change := &models.StatusChange{
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   id,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		Note:       note,
		ChangedAt:  now,
	}
	if err := tx.Create(change).Error; err != nil {
		return nil, fmt.Errorf("record status change: %w", err)
	}
	return change, nil
}

// History lists the status changes of one record, oldest first.
func (s *Service) History(ctx context.Context, tenantID uint, entityType string, id uint) ([]models.StatusChange, error) {
	if _, err := lookup(entityType); err != nil {
		return nil, err
	}
	var out []models.StatusChange
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, id).
		Order("changed_at asc, id asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("status history: %w", err)
	}
	return out, nil
}
