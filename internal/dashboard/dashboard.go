// Package dashboard computes a tenant's summary counters concurrently.
package dashboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
	"opsdesk/internal/utils"
	"opsdesk/internal/workflow"
)

// closedLeadStatuses are always outside the open pipeline, in addition to the
// terminal statuses of the tenant's lead workflow.
var closedLeadStatuses = []string{"won", "lost"}

// Summary is the dashboard payload.
type Summary struct {
	EmployeesByStatus map[string]int64 `json:"employees_by_status"`
	CandidatesByStage map[string]int64 `json:"candidates_by_stage"`
	OpenLeads         int64            `json:"open_leads"`
	PipelineValue     float64          `json:"pipeline_value"`
	ActiveSprints     int64            `json:"active_sprints"`
	Ratings           utils.Summary    `json:"ratings"`
}

// Service builds dashboard summaries.
type Service struct {
	db        *gorm.DB
	workflows *workflow.Service
	logger    *zap.Logger
}

// NewService returns a Service reading lead workflows from workflows.
func NewService(db *gorm.DB, workflows *workflow.Service, logger *zap.Logger) *Service {
	return &Service{db: db, workflows: workflows, logger: logger}
}

// closedLeads returns the lead statuses that do not count as open pipeline.
func (s *Service) closedLeads(ctx context.Context, tenantID uint) ([]string, error) {
	closed := append([]string(nil), closedLeadStatuses...)
	g, err := s.workflows.Graph(ctx, tenantID, "lead")
	if errors.Is(err, apperr.ErrNotFound) {
		return closed, nil
	}
	if err != nil {
		return nil, err
	}
	return append(closed, g.Terminal()...), nil
}

type bucket struct {
	Name  string
	Total int64
}

func groupCount[T any](db *gorm.DB, tenantID uint, column string) (map[string]int64, error) {
	var rows []bucket
	err := store.Scoped[T](db, tenantID).
		Select(column + " AS name, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Total
	}
	return out, nil
}

// Summary fetches every counter in parallel. The first failing query cancels
// the rest.
func (s *Service) Summary(ctx context.Context, tenantID uint) (*Summary, error) {
	out := &Summary{}
	eg, egCtx := errgroup.WithContext(ctx)
	db := func() *gorm.DB { return s.db.WithContext(egCtx) }

	eg.Go(func() error {
		var err error
		out.EmployeesByStatus, err = groupCount[models.Employee](db(), tenantID, "status")
		if err != nil {
			return fmt.Errorf("employees by status: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		var err error
		out.CandidatesByStage, err = groupCount[models.Candidate](db(), tenantID, "stage")
		if err != nil {
			return fmt.Errorf("candidates by stage: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		var row struct {
			OpenCount int64
			OpenValue float64
		}
		closed, err := s.closedLeads(egCtx, tenantID)
		if err != nil {
			return fmt.Errorf("lead workflow: %w", err)
		}
		err = store.Scoped[models.Lead](db(), tenantID).
			Where("status NOT IN ?", closed).
			Select("COUNT(*) AS open_count, COALESCE(SUM(value), 0) AS open_value").
			Scan(&row).Error
		if err != nil {
			return fmt.Errorf("open leads: %w", err)
		}
		out.OpenLeads, out.PipelineValue = row.OpenCount, row.OpenValue
		return nil
	})

	eg.Go(func() error {
		var err error
		out.ActiveSprints, err = store.Count[models.Sprint](db(), tenantID, map[string]interface{}{"status": models.SprintActive})
		if err != nil {
			return fmt.Errorf("active sprints: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		var ratings []*float64
		err := store.Scoped[models.Appraisal](db(), tenantID).
			Where("rating IS NOT NULL").
			Pluck("rating", &ratings).Error
		if err != nil {
			return fmt.Errorf("appraisal ratings: %w", err)
		}
		out.Ratings = utils.Summarize(ratings)
		return nil
	})

	if err := eg.Wait(); err != nil {
		s.logger.Warn("dashboard summary failed", zap.Uint("tenant_id", tenantID), zap.Error(err))
		return nil, err
	}
	return out, nil
}
