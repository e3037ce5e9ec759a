// Package auth handles tenant signup, password login and bearer sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/config"
	"opsdesk/internal/entitlement"
	"opsdesk/internal/models"
	"opsdesk/internal/rbac"
	"opsdesk/internal/store"
	"opsdesk/internal/workflow"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,38}[a-z0-9]$`)

// SignupRequest creates a tenant and its first administrator.
type SignupRequest struct {
	TenantName string `json:"tenant_name" binding:"required"`
	Slug       string `json:"slug" binding:"required"`
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"omitempty,email"`
	Password   string `json:"password" binding:"required"`
	Plan       string `json:"plan"`
}

// LoginRequest identifies a user inside a tenant.
type LoginRequest struct {
	Tenant   string `json:"tenant" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Service handles signup, login and session lifecycle.
type Service struct {
	db           *gorm.DB
	cfg          config.AuthConfig
	plans        map[string]config.Plan
	entitlements *entitlement.Service
	logger       *zap.Logger
	now          func() time.Time
}

// NewService returns an auth Service. ents enforces the seat limit.
func NewService(db *gorm.DB, cfg config.AuthConfig, plans map[string]config.Plan, ents *entitlement.Service, logger *zap.Logger) *Service {
	return &Service{db: db, cfg: cfg, plans: plans, entitlements: ents, logger: logger, now: time.Now}
}

// SignupEnabled reports whether self-service tenant creation is on.
func (s *Service) SignupEnabled() bool { return s.cfg.AllowSignup }

// Signup creates a tenant with its system roles, default workflows and an
// administrator, and logs the administrator in.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*models.Tenant, *models.User, *models.Session, error) {
	if !slugPattern.MatchString(req.Slug) {
		return nil, nil, nil, apperr.Invalid("slug", "must be 3-40 lowercase letters, digits or dashes")
	}
	plan := req.Plan
	if plan == "" {
		plan = s.cfg.DefaultPlan
	}
	if _, ok := s.plans[plan]; !ok {
		return nil, nil, nil, apperr.Invalid("plan", "unknown plan %q", plan)
	}
	hash, err := HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, nil, nil, err
	}

	tenant := &models.Tenant{Name: req.TenantName, Slug: req.Slug, Plan: plan}
	user := &models.User{Username: req.Username, Email: req.Email, Password: hash, IsActive: true}
	var session *models.Session

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return fmt.Errorf("create tenant: %w", apperr.FromDB(err))
		}
		admin, err := rbac.SeedSystemRoles(tx, tenant.ID)
		if err != nil {
			return err
		}
		if err := workflow.SeedDefaults(tx, tenant.ID); err != nil {
			return err
		}
		user.RoleID = admin.ID
		user.SetTenant(tenant.ID)
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create admin user: %w", apperr.FromDB(err))
		}
		session, err = s.issue(tx, user)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	s.logger.Info("tenant signed up", zap.Uint("tenant_id", tenant.ID), zap.String("slug", tenant.Slug), zap.String("plan", plan))
	return tenant, user, session, nil
}

func (s *Service) issue(db *gorm.DB, user *models.User) (*models.Session, error) {
	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		TenantID:  user.TenantID,
		ExpiresAt: s.now().Add(s.cfg.SessionTTL),
	}
	if err := db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Login checks credentials and issues a session. Every failure is reported
// as ErrUnauthorized so callers cannot probe which part was wrong.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*models.Session, *models.User, error) {
	db := s.db.WithContext(ctx)

	var tenant models.Tenant
	if err := db.Where("slug = ? AND is_deleted = ?", req.Tenant, false).First(&tenant).Error; err != nil {
		return nil, nil, s.loginFailure(err, "tenant", req)
	}
	var user models.User
	err := store.Scoped[models.User](db, tenant.ID).Where("username = ?", req.Username).First(&user).Error
	if err != nil {
		return nil, nil, s.loginFailure(err, "user", req)
	}
	if !user.IsActive || !CheckPassword(req.Password, user.Password) {
		return nil, nil, s.loginFailure(nil, "credentials", req)
	}

	session, err := s.issue(db, &user)
	if err != nil {
		return nil, nil, err
	}
	return session, &user, nil
}

func (s *Service) loginFailure(err error, stage string, req LoginRequest) error {
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("login lookup: %w", err)
	}
	s.logger.Info("login rejected", zap.String("tenant", req.Tenant), zap.String("username", req.Username), zap.String("stage", stage))
	return fmt.Errorf("%w: invalid tenant, username or password", apperr.ErrUnauthorized)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", apperr.ErrUnauthorized)
	}
	db := s.db.WithContext(ctx)

	var session models.Session
	if err := db.Where("token = ?", token).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown token", apperr.ErrUnauthorized)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, fmt.Errorf("%w: session expired", apperr.ErrUnauthorized)
	}

	var user models.User
	err := store.Scoped[models.User](db, session.TenantID).Where("id = ?", session.UserID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user removed", apperr.ErrUnauthorized)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user deactivated", apperr.ErrUnauthorized)
	}
	return &user, nil
}

// Logout revokes one token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error
}

// PurgeExpired deletes sessions past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

// RunJanitor purges expired sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.logger.Warn("purge expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Debug("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}

// CreateUser adds a user to the tenant, enforcing the seat limit.
func (s *Service) CreateUser(ctx context.Context, tenantID uint, user *models.User, password string) error {
	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	set, err := s.entitlements.Resolve(ctx, tenantID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seats, err := store.Count[models.User](tx, tenantID, map[string]interface{}{"is_active": true})
		if err != nil {
			return err
		}
		if err := set.CheckLimit("seats", seats); err != nil {
			return err
		}
		if err := store.MustExist[models.Role](ctx, tx, tenantID, user.RoleID, "role_id"); err != nil {
			return err
		}
		if user.TeamID != nil {
			if err := store.MustExist[models.Team](ctx, tx, tenantID, *user.TeamID, "team_id"); err != nil {
				return err
			}
		}
		user.ID = 0
		user.Password = hash
		user.IsActive = true
		return store.New[models.User](tx, nil).Create(ctx, tenantID, user)
	})
}

// SetPassword replaces a user's password and revokes their sessions.
func (s *Service) SetPassword(ctx context.Context, tenantID, userID uint, password string) error {
	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := store.Scoped[models.User](tx, tenantID).Where("id = ?", userID).Update("password", hash)
		if res.Error != nil {
			return fmt.Errorf("set password: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
		}
		return tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error
	})
}
