package models

import "time"

// TeamRole is the closed set of roles a user may hold on a team. Roles are
// persisted under their symbolic names; the enumeration is deliberately
// distinct from ProjectRole and the two are never interchangeable.
type TeamRole string

const (
	TeamRoleAdmin        TeamRole = "admin"
	TeamRoleMember       TeamRole = "member"
	TeamRoleScrumMaster  TeamRole = "scrum_master"
	TeamRoleProductOwner TeamRole = "product_owner"
	TeamRoleDesigner     TeamRole = "designer"
	TeamRoleQA           TeamRole = "qa"
	TeamRoleObserver     TeamRole = "observer"
)

// TeamRoles lists every valid team role.
var TeamRoles = []TeamRole{
	TeamRoleAdmin,
	TeamRoleMember,
	TeamRoleScrumMaster,
	TeamRoleProductOwner,
	TeamRoleDesigner,
	TeamRoleQA,
	TeamRoleObserver,
}

func (r TeamRole) Valid() bool {
	for _, known := range TeamRoles {
		if r == known {
			return true
		}
	}
	return false
}

type Team struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	OrgID       uint   `gorm:"index;not null" json:"org_id"`

	// Relationships
	Organization *Organization    `gorm:"foreignKey:OrgID" json:"organization,omitempty"`
	Members      []TeamMembership `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}

func (Team) TableName() string {
	return "team"
}

// TeamMembership links a user to a team with a single role. The composite
// primary key enforces at most one role per (user, team) pair.
type TeamMembership struct {
	UserID  uint      `gorm:"primaryKey" json:"user_id"`
	TeamID  uint      `gorm:"primaryKey" json:"team_id"`
	Role    TeamRole  `gorm:"type:varchar(50);not null" json:"role"`
	AddedAt time.Time `json:"added_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Team *Team `gorm:"foreignKey:TeamID" json:"-"`
}

func (TeamMembership) TableName() string {
	return "team_membership"
}
