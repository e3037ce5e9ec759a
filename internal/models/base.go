package models

import "time"

// Base is embedded by every tenant-owned record.
type Base struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TenantID  uint      `json:"tenant_id" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted,omitempty" gorm:"default:false;index"`
}

// Tenanted is implemented by pointers to every record embedding Base.
type Tenanted interface {
	GetID() uint
	GetTenantID() uint
	GetBase() Base
	SetTenant(tenantID uint)
	// Protect resets identity fields a client must not change through an update.
	Protect(prev Base)
}

func (b *Base) GetID() uint       { return b.ID }
func (b *Base) GetTenantID() uint { return b.TenantID }
func (b *Base) GetBase() Base     { return *b }

func (b *Base) SetTenant(tenantID uint) { b.TenantID = tenantID }

func (b *Base) Protect(prev Base) {
	b.ID = prev.ID
	b.TenantID = prev.TenantID
	b.CreatedAt = prev.CreatedAt
	b.IsDeleted = prev.IsDeleted
}

// Owned records carry an owner used for own/team permission scopes.
type Owned interface {
	GetOwnerID() *uint
	SetOwner(userID uint)
}

// Owner is embedded by records that are scoped to the user who owns them.
type Owner struct {
	OwnerID *uint `json:"owner_id" gorm:"index"`
}

func (o *Owner) GetOwnerID() *uint { return o.OwnerID }

// SetOwner assigns userID only when no owner was given.
func (o *Owner) SetOwner(userID uint) {
	if o.OwnerID == nil {
		o.OwnerID = &userID
	}
}
