package models

import "time"

// Tenant is one customer organisation. Every other record belongs to exactly one.
type Tenant struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug" gorm:"uniqueIndex"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsDeleted bool      `json:"is_deleted,omitempty" gorm:"default:false;index"`
}

// User is a login inside a tenant.
type User struct {
	Base
	Username string `json:"username" gorm:"index" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"-"`
	RoleID   uint   `json:"role_id" gorm:"index"`
	TeamID   *uint  `json:"team_id" gorm:"index"`
	IsActive bool   `json:"is_active" gorm:"default:true"`
}

// Session is an issued bearer token.
type Session struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	Token     string    `json:"token" gorm:"uniqueIndex"`
	UserID    uint      `json:"user_id" gorm:"index"`
	TenantID  uint      `json:"tenant_id" gorm:"index"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Team groups users; team-scoped permissions resolve through it.
type Team struct {
	Base
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	LeadID      *uint  `json:"lead_id"`
}
