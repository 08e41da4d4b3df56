package models

import "time"

type SprintStatus string

const (
	SprintStatusPlanned   SprintStatus = "planned"
	SprintStatusActive    SprintStatus = "active"
	SprintStatusCompleted SprintStatus = "completed"
)

var SprintStatuses = []SprintStatus{
	SprintStatusPlanned,
	SprintStatusActive,
	SprintStatusCompleted,
}

func (s SprintStatus) Valid() bool {
	for _, known := range SprintStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Sprint struct {
	Base
	Name      string       `gorm:"not null" json:"name"`
	Objective string       `json:"objective,omitempty"`
	StartDate time.Time    `gorm:"not null" json:"start_date"`
	EndDate   time.Time    `gorm:"not null" json:"end_date"`
	Status    SprintStatus `gorm:"type:varchar(50);not null;default:'planned'" json:"status"`
	ProjectID uint         `gorm:"index;not null" json:"project_id"`

	// Relationships
	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Tasks   []Task   `gorm:"foreignKey:SprintID" json:"tasks,omitempty"`
}

func (Sprint) TableName() string {
	return "sprint"
}
