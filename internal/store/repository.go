// Package store is the tenant-scoped persistence layer. Every query it builds
// is restricted to one tenant and skips soft-deleted rows.
package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListOptions controls a paged list query. Filters maps column names to the
// value they must equal; callers allow-list the columns. A nil OwnerIDs leaves
// the query unrestricted, a non-nil empty slice matches nothing.
type ListOptions struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
	Filters   map[string]interface{}
	OwnerIDs  []uint
}

// Page is one page of a list query.
type Page[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Items    []T   `json:"items"`
}

// Repository provides CRUD over one record type.
type Repository[T any] struct {
	db    *gorm.DB
	sorts map[string]string
}

// New creates a repository. sorts maps accepted sort_by values to columns;
// "id" is always accepted.
func New[T any](db *gorm.DB, sorts map[string]string) *Repository[T] {
	allowed := map[string]string{"id": "id", "created_at": "created_at", "updated_at": "updated_at"}
	for k, v := range sorts {
		allowed[k] = v
	}
	return &Repository[T]{db: db, sorts: allowed}
}

// WithTx returns a copy of the repository bound to tx.
func (r *Repository[T]) WithTx(tx *gorm.DB) *Repository[T] {
	return &Repository[T]{db: tx, sorts: r.sorts}
}

// DB exposes the underlying handle for queries the repository does not cover.
func (r *Repository[T]) DB() *gorm.DB { return r.db }

func (r *Repository[T]) scoped(ctx context.Context, tenantID uint) *gorm.DB {
	return Scoped[T](r.db.WithContext(ctx), tenantID)
}

// Scoped starts a query on T restricted to one tenant's live rows.
func Scoped[T any](db *gorm.DB, tenantID uint) *gorm.DB {
	return db.Model(new(T)).Where("tenant_id = ? AND is_deleted = ?", tenantID, false)
}

func restrictOwners(q *gorm.DB, ownerIDs []uint) *gorm.DB {
	if ownerIDs == nil {
		return q
	}
	return q.Where("owner_id IN ?", ownerIDs)
}

// List returns one page of records ordered by an allow-listed column.
func (r *Repository[T]) List(ctx context.Context, tenantID uint, opts ListOptions) (*Page[T], error) {
	page, pageSize := normalizePage(opts.Page, opts.PageSize)

	query := restrictOwners(r.scoped(ctx, tenantID), opts.OwnerIDs)
	for column, value := range opts.Filters {
		query = query.Where(column+" = ?", value)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	sortField, ok := r.sorts[strings.ToLower(opts.SortBy)]
	if !ok {
		sortField = "id"
	}
	sortOrder := strings.ToLower(opts.SortOrder)
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "asc"
	}

	items := make([]T, 0, pageSize)
	err := query.Order(sortField + " " + sortOrder).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	return &Page[T]{Total: total, Page: page, PageSize: pageSize, Items: items}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Get loads one record. ownerIDs restricts the lookup like in List.
func (r *Repository[T]) Get(ctx context.Context, tenantID, id uint, ownerIDs []uint) (*T, error) {
	rec := new(T)
	err := restrictOwners(r.scoped(ctx, tenantID), ownerIDs).Where("id = ?", id).First(rec).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return rec, nil
}

// Create stamps the tenant on rec and inserts it.
func (r *Repository[T]) Create(ctx context.Context, tenantID uint, rec *T) error {
	t, ok := any(rec).(models.Tenanted)
	if !ok {
		return fmt.Errorf("%T does not embed models.Base", rec)
	}
	t.SetTenant(tenantID)
	return apperr.FromDB(r.db.WithContext(ctx).Create(rec).Error)
}

// Save writes every column of an already loaded record.
func (r *Repository[T]) Save(ctx context.Context, rec *T) error {
	return apperr.FromDB(r.db.WithContext(ctx).Save(rec).Error)
}

// SoftDelete flags a record as deleted.
func (r *Repository[T]) SoftDelete(ctx context.Context, tenantID, id uint, ownerIDs []uint) error {
	res := restrictOwners(r.scoped(ctx, tenantID), ownerIDs).
		Where("id = ?", id).
		Update("is_deleted", true)
	if res.Error != nil {
		return fmt.Errorf("soft delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %T %d", apperr.ErrNotFound, new(T), id)
	}
	return nil
}

// Count counts live records matching filters.
func (r *Repository[T]) Count(ctx context.Context, tenantID uint, filters map[string]interface{}) (int64, error) {
	return Count[T](r.db.WithContext(ctx), tenantID, filters)
}

// Count counts T's live rows in a tenant matching filters.
func Count[T any](db *gorm.DB, tenantID uint, filters map[string]interface{}) (int64, error) {
	query := Scoped[T](db, tenantID)
	for column, value := range filters {
		query = query.Where(column+" = ?", value)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// MustExist returns a ValidationError naming field when id does not refer to
// a live T in the tenant.
func MustExist[T any](ctx context.Context, db *gorm.DB, tenantID, id uint, field string) error {
	n, err := Count[T](db.WithContext(ctx).Where("id = ?", id), tenantID, nil)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Invalid(field, "%d does not exist", id)
	}
	return nil
}
