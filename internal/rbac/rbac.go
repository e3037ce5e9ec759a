// Package rbac resolves what a user may do on a module and how far the grant
// reaches: only records they own, records owned by their team, or all.
package rbac

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/store"
)

// Modules that permissions can name. "*" matches all of them.
var Modules = []string{
	"announcements", "appraisals", "candidates", "comments", "dashboard",
	"employees", "entitlements", "goals", "interviews", "leads", "offers",
	"projects", "roles", "sprints", "teams", "users", "workflows",
}

var actions = map[string]bool{
	models.ActionView: true, models.ActionCreate: true, models.ActionEdit: true,
	models.ActionDelete: true, models.ActionTransition: true, models.ActionManage: true,
	"*": true,
}

var scopeRank = map[string]int{models.ScopeOwn: 1, models.ScopeTeam: 2, models.ScopeAll: 3}

// AdminRole is the name of the system role seeded for every tenant.
const AdminRole = "admin"

// Grant is a resolved permission. A nil OwnerIDs means unrestricted.
type Grant struct {
	Scope    string
	OwnerIDs []uint
}

// Allows reports whether a record owned by ownerID is inside the grant.
func (g *Grant) Allows(ownerID *uint) bool {
	if g.OwnerIDs == nil {
		return true
	}
	if ownerID == nil {
		return false
	}
	for _, id := range g.OwnerIDs {
		if id == *ownerID {
			return true
		}
	}
	return false
}

// Widest returns the broadest scope any of perms grants for module/action.
func Widest(perms []models.Permission, module, action string) (string, bool) {
	best := ""
	for _, p := range perms {
		if p.Module != module && p.Module != "*" {
			continue
		}
		if p.Action != action && p.Action != "*" {
			continue
		}
		if scopeRank[p.Scope] > scopeRank[best] {
			best = p.Scope
		}
	}
	return best, best != ""
}

// Service loads roles and resolves grants.
type Service struct {
	db *gorm.DB
}

// NewService returns a Service reading roles from db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Resolve returns the grant user holds for module/action, or ErrForbidden.
func (s *Service) Resolve(ctx context.Context, user *models.User, module, action string) (*Grant, error) {
	role, err := s.GetRole(ctx, user.TenantID, user.RoleID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d has no role", apperr.ErrForbidden, user.ID)
		}
		return nil, err
	}

	scope := models.ScopeAll
	if !(role.IsSystem && role.Name == AdminRole) {
		var ok bool
		scope, ok = Widest(role.Permissions, module, action)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", apperr.ErrForbidden, action, module)
		}
	}

	switch scope {
	case models.ScopeAll:
		return &Grant{Scope: scope}, nil
	case models.ScopeTeam:
		if user.TeamID == nil {
			return &Grant{Scope: scope, OwnerIDs: []uint{user.ID}}, nil
		}
		var ids []uint
		err := store.Scoped[models.User](s.db.WithContext(ctx), user.TenantID).
			Where("team_id = ?", *user.TeamID).
			Pluck("id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("team members: %w", err)
		}
		return &Grant{Scope: scope, OwnerIDs: ids}, nil
	default:
		return &Grant{Scope: scope, OwnerIDs: []uint{user.ID}}, nil
	}
}

// GetRole loads a role with its permissions.
func (s *Service) GetRole(ctx context.Context, tenantID, id uint) (*models.Role, error) {
	var role models.Role
	err := store.Scoped[models.Role](s.db.WithContext(ctx), tenantID).
		Preload("Permissions").
		Where("id = ?", id).
		First(&role).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return &role, nil
}

// ListRoles returns every role of the tenant with permissions.
func (s *Service) ListRoles(ctx context.Context, tenantID uint) ([]models.Role, error) {
	var roles []models.Role
	err := store.Scoped[models.Role](s.db.WithContext(ctx), tenantID).
		Preload("Permissions").
		Order("id asc").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// ValidatePermissions rejects unknown modules, actions and scopes.
func ValidatePermissions(perms []models.Permission) error {
	known := make(map[string]bool, len(Modules)+1)
	for _, m := range Modules {
		known[m] = true
	}
	known["*"] = true

	for i, p := range perms {
		field := fmt.Sprintf("permissions[%d]", i)
		if !known[p.Module] {
			return apperr.Invalid(field, "unknown module %q", p.Module)
		}
		if !actions[p.Action] {
			return apperr.Invalid(field, "unknown action %q", p.Action)
		}
		if scopeRank[p.Scope] == 0 {
			return apperr.Invalid(field, "unknown scope %q", p.Scope)
		}
	}
	return nil
}

// CreateRole inserts a custom role.
func (s *Service) CreateRole(ctx context.Context, tenantID uint, role *models.Role) error {
	if err := ValidatePermissions(role.Permissions); err != nil {
		return err
	}
	role.ID = 0
	role.IsSystem = false
	role.SetTenant(tenantID)
	for i := range role.Permissions {
		role.Permissions[i].ID = 0
	}
	return apperr.FromDB(s.db.WithContext(ctx).Create(role).Error)
}

// UpdateRole replaces name, description and the full permission set.
func (s *Service) UpdateRole(ctx context.Context, tenantID, id uint, in *models.Role) (*models.Role, error) {
	if err := ValidatePermissions(in.Permissions); err != nil {
		return nil, err
	}
	var out *models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := NewService(tx).GetRole(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return fmt.Errorf("%w: system role %q cannot be changed", apperr.ErrForbidden, role.Name)
		}
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.Permission{}).Error; err != nil {
			return fmt.Errorf("clear permissions: %w", err)
		}
		role.Name = in.Name
		role.Description = in.Description
		role.Permissions = nil
		if err := tx.Save(role).Error; err != nil {
			return apperr.FromDB(err)
		}
		perms := make([]models.Permission, len(in.Permissions))
		for i, p := range in.Permissions {
			perms[i] = models.Permission{RoleID: role.ID, Module: p.Module, Action: p.Action, Scope: p.Scope}
		}
		if len(perms) > 0 {
			if err := tx.Create(&perms).Error; err != nil {
				return fmt.Errorf("save permissions: %w", err)
			}
		}
		role.Permissions = perms
		out = role
		return nil
	})
	return out, err
}

// DeleteRole soft-deletes a custom role that no user holds.
func (s *Service) DeleteRole(ctx context.Context, tenantID, id uint) error {
	role, err := s.GetRole(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system role %q cannot be deleted", apperr.ErrForbidden, role.Name)
	}
	n, err := store.Count[models.User](s.db.WithContext(ctx), tenantID, map[string]interface{}{"role_id": id})
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: role %q is assigned to %d users", apperr.ErrConflict, role.Name, n)
	}
	return store.New[models.Role](s.db, nil).SoftDelete(ctx, tenantID, id, nil)
}

// SeedSystemRoles creates the admin and member roles for a new tenant and
// returns the admin role.
func SeedSystemRoles(tx *gorm.DB, tenantID uint) (*models.Role, error) {
	admin := &models.Role{
		Name:        AdminRole,
		Description: "Full access to every module",
		IsSystem:    true,
		Permissions: []models.Permission{{Module: "*", Action: "*", Scope: models.ScopeAll}},
	}
	admin.SetTenant(tenantID)
	if err := tx.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("seed admin role: %w", err)
	}

	member := &models.Role{
		Name:        "member",
		Description: "Works on their own records, reads shared ones",
		IsSystem:    true,
		Permissions: memberPermissions(),
	}
	member.SetTenant(tenantID)
	if err := tx.Create(member).Error; err != nil {
		return nil, fmt.Errorf("seed member role: %w", err)
	}
	return admin, nil
}

func memberPermissions() []models.Permission {
	perms := []models.Permission{
		{Module: "announcements", Action: models.ActionView, Scope: models.ScopeAll},
		{Module: "comments", Action: models.ActionView, Scope: models.ScopeAll},
		{Module: "comments", Action: models.ActionCreate, Scope: models.ScopeAll},
		{Module: "comments", Action: models.ActionEdit, Scope: models.ScopeOwn},
		{Module: "comments", Action: models.ActionDelete, Scope: models.ScopeOwn},
		{Module: "projects", Action: models.ActionView, Scope: models.ScopeAll},
		{Module: "sprints", Action: models.ActionView, Scope: models.ScopeAll},
		{Module: "employees", Action: models.ActionView, Scope: models.ScopeAll},
		{Module: "teams", Action: models.ActionView, Scope: models.ScopeAll},
		{Module: "dashboard", Action: models.ActionView, Scope: models.ScopeAll},
	}
	for _, m := range []string{"leads", "goals", "candidates"} {
		perms = append(perms, models.Permission{Module: m, Action: "*", Scope: models.ScopeOwn})
	}
	return perms
}
