// Package testutil provides a migrated SQLite database for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opsdesk/internal/config"
	"opsdesk/internal/database"
	"opsdesk/internal/models"
)

// NewDB opens a fresh, migrated SQLite database in t's temp dir.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "opsdesk.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// NewTenant inserts a bare tenant on plan.
func NewTenant(t *testing.T, db *gorm.DB, slug, plan string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: slug, Slug: slug, Plan: plan}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}
