package models

import "time"

// Employee statuses, driven by the "employee" workflow.
const (
	EmployeeOnboarding = "onboarding"
	EmployeeActive     = "active"
	EmployeeOnLeave    = "on_leave"
	EmployeeTerminated = "terminated"
)

// Employee defines the structure for a person on the payroll. Status follows
// the employee workflow.
type Employee struct {
	Base
	Owner
	FirstName  string     `json:"first_name" binding:"required"`
	LastName   string     `json:"last_name" binding:"required"`
	Email      string     `json:"email" gorm:"index" binding:"omitempty,email"`
	Department string     `json:"department" gorm:"index"`
	Position   string     `json:"position"`
	ManagerID  *uint      `json:"manager_id" gorm:"index"`
	UserID     *uint      `json:"user_id" gorm:"index"`
	Status     string     `json:"status" gorm:"index"`
	HireDate   *time.Time `json:"hire_date"`
}

// OnboardingTask is one step of an employee's onboarding checklist.
type OnboardingTask struct {
	Base
	EmployeeID uint       `json:"employee_id" gorm:"index"`
	Position   int        `json:"position"`
	Title      string     `json:"title"`
	Done       bool       `json:"done"`
	DoneAt     *time.Time `json:"done_at"`
	DoneBy     *uint      `json:"done_by"`
}

// Candidate defines the structure for an applicant moving through the hiring
// pipeline.
type Candidate struct {
	Base
	Owner
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`
	Position string `json:"position" gorm:"index"`
	Source   string `json:"source"`
	Stage    string `json:"stage" gorm:"index"`
}

// Interview is one scheduled conversation with a candidate.
type Interview struct {
	Base
	CandidateID   uint      `json:"candidate_id" gorm:"index" binding:"required"`
	InterviewerID *uint     `json:"interviewer_id" gorm:"index"`
	ScheduledAt   time.Time `json:"scheduled_at" binding:"required"`
	Kind          string    `json:"kind"`
	Feedback      string    `json:"feedback"`
	Rating        *int      `json:"rating" binding:"omitempty,min=1,max=5"`
}

// Offer defines the structure for an employment offer made to a candidate.
type Offer struct {
	Base
	Owner
	CandidateID uint       `json:"candidate_id" gorm:"index" binding:"required"`
	Salary      float64    `json:"salary" binding:"gte=0"`
	Currency    string     `json:"currency" binding:"omitempty,len=3"`
	StartDate   *time.Time `json:"start_date"`
	Status      string     `json:"status" gorm:"index"`
}

// Announcement is a company-wide notice.
type Announcement struct {
	Base
	Title       string     `json:"title" binding:"required"`
	Body        string     `json:"body"`
	AuthorID    *uint      `json:"author_id"`
	Pinned      bool       `json:"pinned"`
	PublishedAt *time.Time `json:"published_at"`
}
