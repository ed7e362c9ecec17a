package models

import "time"

// Message is one entry of an order conversation. Rows are only ever inserted;
// the auto-increment ID defines the order of the log.
type Message struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   string    `gorm:"type:varchar(36);not null;index:idx_order_msg" json:"orderId"`
	SenderID  string    `gorm:"type:varchar(36);not null" json:"sender"`
	Text      string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "order_messages"
}
