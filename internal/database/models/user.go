package models

type User struct {
	Base
	Name         string `json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Phone        string `json:"phone,omitempty"`
	Avatar       string `json:"avatar,omitempty"`

	// Relationships
	Admin              *Admin              `gorm:"foreignKey:UserID" json:"-"`
	TeamMemberships    []TeamMembership    `gorm:"foreignKey:UserID" json:"-"`
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:UserID" json:"-"`
	AssignedTasks      []Task              `gorm:"foreignKey:AssigneeID" json:"-"`
	CreatedTasks       []Task              `gorm:"foreignKey:CreatorID" json:"-"`
	Notifications      []Notification      `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "user"
}

// Admin marks a user as site administrator. The row itself is the
// capability: it is created when a user creates their first organization
// and is never auto-revoked.
type Admin struct {
	UserID uint `gorm:"primaryKey" json:"user_id"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Admin) TableName() string {
	return "admin"
}
