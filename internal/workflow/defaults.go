package workflow

import (
	"fmt"

	"gorm.io/gorm"

	"opsdesk/internal/models"
)

func edges(pairs ...string) []models.Transition {
	out := make([]models.Transition, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Transition{FromStatus: pairs[i], ToStatus: pairs[i+1]})
	}
	return out
}

// Defaults returns the workflows a new tenant starts with.
func Defaults() []models.Workflow {
	return []models.Workflow{
		{
			EntityType:    "lead",
			Name:          "Sales pipeline",
			InitialStatus: "new",
			Transitions: edges(
				"new", "contacted",
				"contacted", "qualified",
				"qualified", "proposal",
				"proposal", "negotiation",
				"negotiation", "won",
				"new", "lost",
				"contacted", "lost",
				"qualified", "lost",
				"proposal", "lost",
				"negotiation", "lost",
				"lost", "new",
			),
		},
		{
			EntityType:    "candidate",
			Name:          "Hiring pipeline",
			InitialStatus: "applied",
			Transitions: edges(
				"applied", "screening",
				"screening", "interview",
				"interview", "offer",
				"offer", "hired",
				"applied", "rejected",
				"screening", "rejected",
				"interview", "rejected",
				"offer", "rejected",
			),
		},
		{
			EntityType:    "offer",
			Name:          "Offer approval",
			InitialStatus: "draft",
			Transitions: edges(
				"draft", "sent",
				"sent", "accepted",
				"sent", "declined",
				"draft", "withdrawn",
				"sent", "withdrawn",
			),
		},
		{
			EntityType:    "employee",
			Name:          "Employment lifecycle",
			InitialStatus: models.EmployeeOnboarding,
			Transitions: edges(
				models.EmployeeOnboarding, models.EmployeeActive,
				models.EmployeeActive, models.EmployeeOnLeave,
				models.EmployeeOnLeave, models.EmployeeActive,
				models.EmployeeOnboarding, models.EmployeeTerminated,
				models.EmployeeActive, models.EmployeeTerminated,
				models.EmployeeOnLeave, models.EmployeeTerminated,
			),
		},
	}
}

// SeedDefaults creates the default workflows for a new tenant inside tx.
func SeedDefaults(tx *gorm.DB, tenantID uint) error {
	for _, wf := range Defaults() {
		wf := wf
		wf.SetTenant(tenantID)
		if err := tx.Create(&wf).Error; err != nil {
			return fmt.Errorf("seed %s workflow: %w", wf.EntityType, err)
		}
	}
	return nil
}
