package models

import "time"

// Base holds the integer primary key and creation timestamp shared by root
// entities. Memberships and the admin marker carry their own composite or
// natural keys and do not embed it.
type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
