package models

// Lead defines the structure for a sales opportunity.
type Lead struct {
	Base
	Owner
	Name    string  `json:"name" binding:"required"`
	Company string  `json:"company" gorm:"index"`
	Email   string  `json:"email" binding:"omitempty,email"`
	Phone   string  `json:"phone"`
	Value   float64 `json:"value" binding:"gte=0"`
	Source  string  `json:"source"`
	Status  string  `json:"status" gorm:"index"`
}
