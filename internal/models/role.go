package models

// Permission scopes, narrowest first.
const (
	ScopeOwn  = "own"
	ScopeTeam = "team"
	ScopeAll  = "all"
)

// Permission actions.
const (
	ActionView       = "view"
	ActionCreate     = "create"
	ActionEdit       = "edit"
	ActionDelete     = "delete"
	ActionTransition = "transition"
	ActionManage     = "manage"
)

// Role defines the structure for user roles.
type Role struct {
	Base
	Name        string       `json:"name" binding:"required"`
	Description string       `json:"description"`
	IsSystem    bool         `json:"is_system"`
	Permissions []Permission `json:"permissions" gorm:"constraint:OnDelete:CASCADE"`
}

// Permission grants one action on one module. Module "*" or action "*" match anything.
type Permission struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	RoleID uint   `json:"role_id" gorm:"index"`
	Module string `json:"module" binding:"required"`
	Action string `json:"action" binding:"required"`
	Scope  string `json:"scope" binding:"required,oneof=own team all"`
}
