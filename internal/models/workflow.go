package models

import "time"

// Workflow declares the allowed status changes for one entity type.
type Workflow struct {
	Base
	EntityType    string       `json:"entity_type" binding:"required"`
	Name          string       `json:"name"`
	InitialStatus string       `json:"initial_status" binding:"required"`
	Transitions   []Transition `json:"transitions" gorm:"constraint:OnDelete:CASCADE"`
}

// Transition is one allowed (from, to) status pair of a workflow.
type Transition struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	WorkflowID uint   `json:"workflow_id" gorm:"index"`
	FromStatus string `json:"from" binding:"required"`
	ToStatus   string `json:"to" binding:"required"`
	Name       string `json:"name"`
}

// StatusChange records one applied transition.
type StatusChange struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TenantID   uint      `json:"tenant_id" gorm:"index"`
	EntityType string    `json:"entity_type" gorm:"index:idx_status_changes_entity"`
	EntityID   uint      `json:"entity_id" gorm:"index:idx_status_changes_entity"`
	FromStatus string    `json:"from"`
	ToStatus   string    `json:"to"`
	ActorID    *uint     `json:"actor_id"`
	Note       string    `json:"note"`
	ChangedAt  time.Time `json:"changed_at"`
}

// Entitlement overrides a tenant's plan for one feature or limit.
type Entitlement struct {
	Base
	Feature string `json:"feature" gorm:"index"`
	Enabled bool   `json:"enabled"`
	Limit   *int   `json:"limit"`
}
