// Package entitlement decides which features and limits a tenant has: the
// plan from the catalog, overridden per feature by Entitlement rows.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/config"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
)

// Feature is the effective state of one feature or limit for a tenant.
type Feature struct {
	Feature    string `json:"feature"`
	Enabled    bool   `json:"enabled"`
	Limit      *int   `json:"limit,omitempty"`
	Overridden bool   `json:"overridden"`
}

// Set is a tenant's effective entitlements keyed by feature name.
type Set map[string]Feature

// Has reports whether feature is enabled.
func (s Set) Has(feature string) bool {
	return s[feature].Enabled
}

// Check returns ErrNotEntitled when feature is not enabled.
func (s Set) Check(feature string) error {
	if s.Has(feature) {
		return nil
	}
	return fmt.Errorf("%w: %s", apperr.ErrNotEntitled, feature)
}

// CheckLimit returns ErrLimitReached when adding one more item to current
// would exceed the named limit. A missing or zero limit is unlimited; a
// disabled one allows nothing.
func (s Set) CheckLimit(name string, current int64) error {
	f, ok := s[name]
	if ok && !f.Enabled {
		return fmt.Errorf("%w: %s is disabled", apperr.ErrLimitReached, name)
	}
	if !ok || f.Limit == nil || *f.Limit <= 0 {
		return nil
	}
	if current >= int64(*f.Limit) {
		return fmt.Errorf("%w: %s is limited to %d", apperr.ErrLimitReached, name, *f.Limit)
	}
	return nil
}

// Sorted lists the set ordered by feature name.
func (s Set) Sorted() []Feature {
	out := make([]Feature, 0, len(s))
	for _, f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Feature < out[j].Feature })
	return out
}

// Service resolves entitlements against the configured plan catalog.
type Service struct {
	db    *gorm.DB
	plans map[string]config.Plan
}

// NewService returns a Service resolving plans from the given catalog.
func NewService(db *gorm.DB, plans map[string]config.Plan) *Service {
	return &Service{db: db, plans: plans}
}

// Resolve merges the tenant's plan with its overrides.
func (s *Service) Resolve(ctx context.Context, tenantID uint) (Set, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", tenantID, false).First(&tenant).Error
	if err != nil {
		return nil, fmt.Errorf("tenant %d: %w", tenantID, apperr.FromDB(err))
	}

	set := Set{}
	if plan, ok := s.plans[tenant.Plan]; ok {
		for _, f := range plan.Features {
			set[f] = Feature{Feature: f, Enabled: true}
		}
		for name, limit := range plan.Limits {
			limit := limit
			set[name] = Feature{Feature: name, Enabled: true, Limit: &limit}
		}
	}

	var overrides []models.Entitlement
	if err := store.Scoped[models.Entitlement](s.db.WithContext(ctx), tenantID).Find(&overrides).Error; err != nil {
		return nil, fmt.Errorf("entitlement overrides: %w", err)
	}
	for _, o := range overrides {
		f := set[o.Feature]
		f.Feature = o.Feature
		f.Enabled = o.Enabled
		if o.Limit != nil {
			f.Limit = o.Limit
		}
		f.Overridden = true
		set[o.Feature] = f
	}
	return set, nil
}

// Check is Resolve followed by Set.Check.
func (s *Service) Check(ctx context.Context, tenantID uint, feature string) error {
	set, err := s.Resolve(ctx, tenantID)
	if err != nil {
		return err
	}
	return set.Check(feature)
}

// Override sets or replaces the tenant's override for one feature.
func (s *Service) Override(ctx context.Context, tenantID uint, feature string, enabled bool, limit *int) (*models.Entitlement, error) {
	if feature == "" {
		return nil, apperr.Invalid("feature", "must not be empty")
	}
	if limit != nil && *limit < 0 {
		return nil, apperr.Invalid("limit", "must not be negative")
	}

	var ent models.Entitlement
	err := store.Scoped[models.Entitlement](s.db.WithContext(ctx), tenantID).
		Where("feature = ?", feature).
		First(&ent).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		ent = models.Entitlement{Feature: feature}
		ent.SetTenant(tenantID)
	case err != nil:
		return nil, fmt.Errorf("load entitlement: %w", err)
	}
	ent.Enabled = enabled
	ent.Limit = limit
	if err := s.db.WithContext(ctx).Save(&ent).Error; err != nil {
		return nil, apperr.FromDB(err)
	}
	return &ent, nil
}

// ClearOverride drops the tenant's override so the plan value applies again.
func (s *Service) ClearOverride(ctx context.Context, tenantID uint, feature string) error {
	res := store.Scoped[models.Entitlement](s.db.WithContext(ctx), tenantID).
		Where("feature = ?", feature).
		Update("is_deleted", true)
	if res.Error != nil {
		return fmt.Errorf("clear entitlement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: no override for %s", apperr.ErrNotFound, feature)
	}
	return nil
}

// ChangePlan moves the tenant to another catalog plan.
func (s *Service) ChangePlan(ctx context.Context, tenantID uint, plan string) error {
	if _, ok := s.plans[plan]; !ok {
		return apperr.Invalid("plan", "unknown plan %q", plan)
	}
	res := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ? AND is_deleted = ?", tenantID, false).
		Update("plan", plan)
	if res.Error != nil {
		return fmt.Errorf("change plan: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: tenant %d", apperr.ErrNotFound, tenantID)
	}
	return nil
}
