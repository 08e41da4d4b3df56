package models

import "time"

// Leaf entities attached to tasks and users. No invariants beyond
// foreign-key integrity.

type Comment struct {
	Base
	Content   string     `gorm:"not null" json:"content"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false" json:"updated_at,omitempty"`
	TaskID    uint       `gorm:"index;not null" json:"task_id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Comment) TableName() string {
	return "comment"
}

type Attachment struct {
	Base
	FileName string `gorm:"not null" json:"file_name"`
	FileURL  string `gorm:"not null" json:"file_url"`
	TaskID   uint   `gorm:"index;not null" json:"task_id"`
	UserID   uint   `gorm:"index;not null" json:"user_id"`
}

func (Attachment) TableName() string {
	return "attachment"
}

type Notification struct {
	Base
	Content string `gorm:"not null" json:"content"`
	Read    bool   `gorm:"default:false" json:"read"`
	UserID  uint   `gorm:"index;not null" json:"user_id"`
}

func (Notification) TableName() string {
	return "notification"
}
