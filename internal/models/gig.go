package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gig is a catalog entry offered by a seller. Price is in minor currency units.
type Gig struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SellerID     string    `gorm:"type:varchar(36);not null;index" json:"sellerId"`
	Title        string    `gorm:"not null" json:"title"`
	Price        int64     `gorm:"not null" json:"price"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	DeliveryDays int       `json:"deliveryDays"`
	CreatedAt    time.Time `json:"-"`
}

// TableName specifies the table name for the Gig model
func (Gig) TableName() string {
	return "gigs"
}

func (g *Gig) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	return
}
