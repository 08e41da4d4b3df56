package models

type Organization struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	AdminID     uint   `gorm:"index;not null" json:"admin_id"`

	// Relationships
	Teams    []Team    `gorm:"foreignKey:OrgID" json:"teams,omitempty"`
	Projects []Project `gorm:"foreignKey:OrgID" json:"projects,omitempty"`
}

func (Organization) TableName() string {
	return "organization"
}
