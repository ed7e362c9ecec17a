package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is the profile view of a marketplace member. Profiles are owned by the
// account service; the order core only reads them for display.
type User struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Email       string         `gorm:"uniqueIndex" json:"email,omitempty"`
	AvatarURL   string         `json:"avatarUrl,omitempty"`
	Designation string         `json:"designation,omitempty"`
	Skills      pq.StringArray `gorm:"type:text[]" json:"skills,omitempty"`
	CreatedAt   time.Time      `json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate is a GORM hook that generates a UUID for the user
// when the ID has not been set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
