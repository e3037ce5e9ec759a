package models

import "time"

// Sprint statuses.
const (
	SprintPlanned   = "planned"
	SprintActive    = "active"
	SprintCompleted = "completed"
)

// Project defines the structure for a project. Key is unique per tenant.
type Project struct {
	Base
	Owner
	Name        string `json:"name" binding:"required"`
	Key         string `json:"key" binding:"required,alphanum,max=10"`
	Description string `json:"description"`
}

// Sprint is a time box within a project. Status changes only through start
// and complete.
type Sprint struct {
	Base
	ProjectID uint       `json:"project_id" gorm:"index" binding:"required"`
	Name      string     `json:"name" binding:"required"`
	Goal      string     `json:"goal"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Status    string     `json:"status" gorm:"index"`
}

// Comment is stored flat; threads are rebuilt from ParentID on read. The
// owner is the author.
type Comment struct {
	Base
	Owner
	EntityType string `json:"entity_type" gorm:"index:idx_comments_entity" binding:"required"`
	EntityID   uint   `json:"entity_id" gorm:"index:idx_comments_entity" binding:"required"`
	ParentID   *uint  `json:"parent_id" gorm:"index"`
	Body       string `json:"body" binding:"required"`
}
