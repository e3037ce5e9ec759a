// Package onboarding creates employees together with their onboarding
// checklist and walks the checklist in order. Finishing the last task moves
// the employee from onboarding to active through the employee workflow.
package onboarding

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
	"opsdesk/internal/workflow"
)

// Progress is an employee's checklist with counters.
type Progress struct {
	EmployeeID     uint                    `json:"employee_id"`
	EmployeeStatus string                  `json:"employee_status"`
	Completed      int                     `json:"completed"`
	Total          int                     `json:"total"`
	Tasks          []models.OnboardingTask `json:"tasks"`
}

// Service generates onboarding checklists and tracks their completion.
type Service struct {
	db        *gorm.DB
	workflows *workflow.Service
	checklist []string
}

// NewService returns a Service that gives new hires the checklist tasks.
func NewService(db *gorm.DB, workflows *workflow.Service, checklist []string) *Service {
	return &Service{db: db, workflows: workflows, checklist: checklist}
}

// Hire inserts emp in the employee workflow's initial status. When that
// status is onboarding the checklist is generated in the same transaction.
func (s *Service) Hire(ctx context.Context, tenantID uint, emp *models.Employee) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if emp.ManagerID != nil {
			if err := store.MustExist[models.Employee](ctx, tx, tenantID, *emp.ManagerID, "manager_id"); err != nil {
				return err
			}
		}
		if emp.UserID != nil {
			if err := store.MustExist[models.User](ctx, tx, tenantID, *emp.UserID, "user_id"); err != nil {
				return err
			}
		}

		status, err := s.workflows.InitialStatusTx(tx, tenantID, "employee")
		if err != nil {
			return err
		}
		emp.ID = 0
		emp.Status = status
		if err := store.New[models.Employee](tx, nil).Create(ctx, tenantID, emp); err != nil {
			return err
		}
		if status != models.EmployeeOnboarding {
			return nil
		}

		tasks := make([]models.OnboardingTask, len(s.checklist))
		for i, title := range s.checklist {
			tasks[i] = models.OnboardingTask{EmployeeID: emp.ID, Position: i + 1, Title: title}
			tasks[i].SetTenant(tenantID)
		}
		if len(tasks) == 0 {
			return nil
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return fmt.Errorf("create onboarding tasks: %w", err)
		}
		return nil
	})
}

// Progress returns the employee's checklist.
func (s *Service) Progress(ctx context.Context, tenantID, employeeID uint) (*Progress, error) {
	return progress(s.db.WithContext(ctx), tenantID, employeeID)
}

func progress(db *gorm.DB, tenantID, employeeID uint) (*Progress, error) {
	var emp models.Employee
	if err := store.Scoped[models.Employee](db, tenantID).Where("id = ?", employeeID).First(&emp).Error; err != nil {
		return nil, fmt.Errorf("employee %d: %w", employeeID, apperr.FromDB(err))
	}
	var tasks []models.OnboardingTask
	err := store.Scoped[models.OnboardingTask](db, tenantID).
		Where("employee_id = ?", employeeID).
		Order("position asc").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("onboarding tasks: %w", err)
	}

	p := &Progress{EmployeeID: employeeID, EmployeeStatus: emp.Status, Total: len(tasks), Tasks: tasks}
	for _, t := range tasks {
		if t.Done {
			p.Completed++
		}
	}
	return p, nil
}

// Complete marks the task at position done. Tasks complete strictly in order.
func (s *Service) Complete(ctx context.Context, tenantID, employeeID uint, position int, actorID uint) (*Progress, error) {
	var out *Progress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := progress(tx, tenantID, employeeID)
		if err != nil {
			return err
		}
		if p.EmployeeStatus != models.EmployeeOnboarding {
			return fmt.Errorf("%w: employee %d is %s", apperr.ErrInvalidTransition, employeeID, p.EmployeeStatus)
		}

		var task *models.OnboardingTask
		for i := range p.Tasks {
			t := &p.Tasks[i]
			if t.Position == position {
				task = t
				break
			}
			if !t.Done {
				return fmt.Errorf("%w: complete %q (step %d) first", apperr.ErrInvalidTransition, t.Title, t.Position)
			}
		}
		if task == nil {
			return fmt.Errorf("%w: onboarding step %d", apperr.ErrNotFound, position)
		}
		if task.Done {
			return fmt.Errorf("%w: step %d is already done", apperr.ErrConflict, position)
		}

		now := time.Now()
		res := store.Scoped[models.OnboardingTask](tx, tenantID).
			Where("id = ? AND done = ?", task.ID, false).
			Updates(map[string]interface{}{"done": true, "done_at": now, "done_by": actorID, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("complete step: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: step %d changed concurrently", apperr.ErrConflict, position)
		}
		task.Done = true
		task.DoneAt = &now
		task.DoneBy = &actorID
		p.Completed++

		if p.Completed == p.Total {
			change, err := s.workflows.ApplyTx(tx, tenantID, "employee", employeeID, models.EmployeeActive, &actorID, "onboarding complete")
			if err != nil {
				return err
			}
			p.EmployeeStatus = change.ToStatus
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
