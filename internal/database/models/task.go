package models

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusInReview   TaskStatus = "in_review"
	TaskStatusDone       TaskStatus = "done"
)

var TaskStatuses = []TaskStatus{
	TaskStatusTodo,
	TaskStatusInProgress,
	TaskStatusInReview,
	TaskStatusDone,
}

func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type TaskType string

const (
	TaskTypeTask        TaskType = "task"
	TaskTypeBug         TaskType = "bug"
	TaskTypeFeature     TaskType = "feature"
	TaskTypeImprovement TaskType = "improvement"
)

var TaskTypes = []TaskType{
	TaskTypeTask,
	TaskTypeBug,
	TaskTypeFeature,
	TaskTypeImprovement,
}

func (t TaskType) Valid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "low"
	TaskPriorityMedium   TaskPriority = "medium"
	TaskPriorityHigh     TaskPriority = "high"
	TaskPriorityCritical TaskPriority = "critical"
)

var TaskPriorities = []TaskPriority{
	TaskPriorityLow,
	TaskPriorityMedium,
	TaskPriorityHigh,
	TaskPriorityCritical,
}

func (p TaskPriority) Valid() bool {
	for _, known := range TaskPriorities {
		if p == known {
			return true
		}
	}
	return false
}

// Task always belongs to a project and a creator; sprint and assignee are
// optional. UpdatedAt and ResolvedAt stay nil until an edit or resolution
// actually happens, so automatic timestamp tracking is disabled.
type Task struct {
	Base
	Title           string       `gorm:"not null" json:"title"`
	Description     string       `json:"description,omitempty"`
	Type            TaskType     `gorm:"type:varchar(50);not null;default:'task'" json:"type"`
	Priority        TaskPriority `gorm:"type:varchar(50);not null;default:'medium'" json:"priority"`
	Status          TaskStatus   `gorm:"type:varchar(50);not null;default:'todo'" json:"status"`
	EstimatedEffort float64      `json:"estimated_effort"`
	RemainingEffort float64      `json:"remaining_effort"`
	UpdatedAt       *time.Time   `gorm:"autoUpdateTime:false" json:"updated_at,omitempty"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	ProjectID       uint         `gorm:"index;not null" json:"project_id"`
	SprintID        *uint        `gorm:"index" json:"sprint_id,omitempty"`
	AssigneeID      *uint        `gorm:"index" json:"assignee_id,omitempty"`
	CreatorID       uint         `gorm:"index;not null" json:"creator_id"`

	// Relationships
	Project     *Project     `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Sprint      *Sprint      `gorm:"foreignKey:SprintID" json:"sprint,omitempty"`
	Assignee    *User        `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Creator     *User        `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Comments    []Comment    `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
	Attachments []Attachment `gorm:"foreignKey:TaskID" json:"attachments,omitempty"`
}

func (Task) TableName() string {
	return "task"
}
