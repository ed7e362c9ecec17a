package models

import "time"

// Review is the buyer's rating of a gig, left once per completed order.
type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"orderId"`
	GigID     string    `gorm:"type:varchar(36);not null;index" json:"gigId"`
	AuthorID  string    `gorm:"type:varchar(36);not null" json:"authorId"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Review) TableName() string {
	return "reviews"
}
