package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"opsdesk/internal/config"
	"opsdesk/internal/models"
)

// Open connects to the configured database driver and applies pool settings.
// Failed and slow queries are logged to log.
func Open(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.PostgresURI)
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.SQLitePath))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         NewQueryLogger(log, cfg.SlowQuery),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite allows one writer; serialize through a single connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// All lists every table the service owns, in creation order.
func All() []interface{} {
	return []interface{}{
		&models.Tenant{},
		&models.Role{},
		&models.Permission{},
		&models.Team{},
		&models.User{},
		&models.Session{},
		&models.Employee{},
		&models.OnboardingTask{},
		&models.Candidate{},
		&models.Interview{},
		&models.Offer{},
		&models.Announcement{},
		&models.Goal{},
		&models.Appraisal{},
		&models.Lead{},
		&models.Project{},
		&models.Sprint{},
		&models.Comment{},
		&models.Workflow{},
		&models.Transition{},
		&models.StatusChange{},
		&models.Entitlement{},
	}
}

// uniqueIndexes are per-tenant uniqueness rules that ignore soft-deleted rows.
// Both postgres and sqlite accept partial indexes.
var uniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_tenant_username ON users (tenant_id, username) WHERE is_deleted = false`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_tenant_name ON roles (tenant_id, name) WHERE is_deleted = false`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_tenant_key ON projects (tenant_id, "key") WHERE is_deleted = false`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_workflows_tenant_entity ON workflows (tenant_id, entity_type) WHERE is_deleted = false`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_entitlements_tenant_feature ON entitlements (tenant_id, feature) WHERE is_deleted = false`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_onboarding_tasks_position ON onboarding_tasks (employee_id, position) WHERE is_deleted = false`,
	// at most one active sprint per project
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sprints_one_active ON sprints (project_id) WHERE status = 'active' AND is_deleted = false`,
}

// Migrate creates or updates every table and the partial unique indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	for _, stmt := range uniqueIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
