package models

import "time"

type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = "pending"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

var ProjectStatuses = []ProjectStatus{
	ProjectStatusPending,
	ProjectStatusActive,
	ProjectStatusCompleted,
	ProjectStatusArchived,
}

func (s ProjectStatus) Valid() bool {
	for _, known := range ProjectStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ProjectRole is the closed set of roles a user may hold on a project,
// persisted under their symbolic names. It is distinct from TeamRole even
// where names overlap (scrum_master, product_owner, observer).
type ProjectRole string

const (
	ProjectRoleAdministrator ProjectRole = "administrator"
	ProjectRoleLead          ProjectRole = "lead"
	ProjectRoleDeveloper     ProjectRole = "developer"
	ProjectRoleTester        ProjectRole = "tester"
	ProjectRoleProductOwner  ProjectRole = "product_owner"
	ProjectRoleScrumMaster   ProjectRole = "scrum_master"
	ProjectRoleObserver      ProjectRole = "observer"
	ProjectRoleContributor   ProjectRole = "contributor"
)

var ProjectRoles = []ProjectRole{
	ProjectRoleAdministrator,
	ProjectRoleLead,
	ProjectRoleDeveloper,
	ProjectRoleTester,
	ProjectRoleProductOwner,
	ProjectRoleScrumMaster,
	ProjectRoleObserver,
	ProjectRoleContributor,
}

func (r ProjectRole) Valid() bool {
	for _, known := range ProjectRoles {
		if r == known {
			return true
		}
	}
	return false
}

type Project struct {
	Base
	Name        string        `gorm:"not null" json:"name"`
	Key         string        `gorm:"index" json:"key"`
	Description string        `json:"description"`
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	Status      ProjectStatus `gorm:"type:varchar(50);not null;default:'pending'" json:"status"`
	OrgID       uint          `gorm:"index;not null" json:"org_id"`

	// Relationships
	Organization *Organization       `gorm:"foreignKey:OrgID" json:"organization,omitempty"`
	Members      []ProjectMembership `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
	Sprints      []Sprint            `gorm:"foreignKey:ProjectID" json:"sprints,omitempty"`
	Tasks        []Task              `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}

func (Project) TableName() string {
	return "project"
}

// ProjectMembership links a user to a project with a single role, keyed on
// the (user, project) pair.
type ProjectMembership struct {
	UserID    uint        `gorm:"primaryKey" json:"user_id"`
	ProjectID uint        `gorm:"primaryKey" json:"project_id"`
	Role      ProjectRole `gorm:"type:varchar(50);not null" json:"role"`
	AddedAt   time.Time   `json:"added_at"`

	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Project *Project `gorm:"foreignKey:ProjectID" json:"-"`
}

func (ProjectMembership) TableName() string {
	return "project_membership"
}
