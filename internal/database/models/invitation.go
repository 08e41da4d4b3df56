package models

import "time"

// Invitation is a token-bearing record inviting an email address into an
// organization, optionally onto a specific team with a given role.
// Accepting a valid, unexpired, unaccepted invitation creates the team
// membership and flips Accepted in one transaction.
type Invitation struct {
	Base
	Email         string    `gorm:"not null;index" json:"email"`
	Token         string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt     time.Time `gorm:"not null" json:"expires_at"`
	Accepted      bool      `gorm:"default:false" json:"accepted"`
	InviterUserID uint      `gorm:"not null" json:"inviter_user_id"`
	OrgID         uint      `gorm:"index;not null" json:"org_id"`
	TeamID        *uint     `gorm:"index" json:"team_id,omitempty"`
	Role          TeamRole  `gorm:"type:varchar(50);not null;default:'member'" json:"role"`

	Organization *Organization `gorm:"foreignKey:OrgID" json:"organization,omitempty"`
}

func (Invitation) TableName() string {
	return "invitation"
}
