package models

import "time"

// Goal is an objective set for an employee.
type Goal struct {
	Base
	Owner
	EmployeeID  uint       `json:"employee_id" gorm:"index" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Progress    int        `json:"progress" binding:"min=0,max=100"`
	Status      string     `json:"status" binding:"omitempty,oneof=not_started in_progress completed cancelled"`
	DueDate     *time.Time `json:"due_date"`
}

// Appraisal defines the structure for a periodic employee review. Rating is
// optional until the review is done.
type Appraisal struct {
	Base
	Owner
	EmployeeID uint     `json:"employee_id" gorm:"index" binding:"required"`
	ReviewerID *uint    `json:"reviewer_id"`
	Period     string   `json:"period" gorm:"index" binding:"required"`
	Rating     *float64 `json:"rating" binding:"omitempty,min=1,max=5"`
	Comments   string   `json:"comments"`
	Status     string   `json:"status" binding:"omitempty,oneof=draft submitted acknowledged"`
}
