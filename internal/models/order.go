package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the workflow state of an Order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusAccepted   OrderStatus = "accepted"
	StatusRejected   OrderStatus = "rejected"
	StatusPaid       OrderStatus = "paid"
	StatusInProgress OrderStatus = "in_progress"
	StatusCompleted  OrderStatus = "completed"
)

// AllStatuses lists every value an order status may take.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusAccepted,
	StatusRejected,
	StatusPaid,
	StatusInProgress,
	StatusCompleted,
}

// Valid reports whether s is one of the enumerated statuses.
func (s OrderStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Role is the part an identity plays in a given order.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	// RoleSystem is used by the payment callback; no user id maps to it.
	RoleSystem Role = "system"
	RoleNone   Role = ""
)

// Order is a buyer's request to purchase a gig from a seller. It carries both the
// workflow status and the conversation between the two parties.
type Order struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	GigID    string `gorm:"type:varchar(36);not null;uniqueIndex:idx_order_triple" json:"gigId"`
	BuyerID  string `gorm:"type:varchar(36);not null;uniqueIndex:idx_order_triple;index" json:"buyerId"`
	SellerID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_order_triple;index" json:"sellerId"`

	Status OrderStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	Paid   bool        `gorm:"not null;default:false" json:"paid"`

	Conversation []Message `gorm:"foreignKey:OrderID" json:"conversation"`

	// Denormalized catalog and profile data, filled by preloads on listing.
	Gig    *Gig  `gorm:"foreignKey:GigID" json:"gig,omitempty"`
	Buyer  *User `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Seller *User `gorm:"foreignKey:SellerID" json:"seller,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (o *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return
}

// RoleOf returns the role userID plays in the order, or RoleNone.
func (o *Order) RoleOf(userID string) Role {
	switch {
	case userID == "":
		return RoleNone
	case userID == o.SellerID:
		return RoleSeller
	case userID == o.BuyerID:
		return RoleBuyer
	}
	return RoleNone
}

// IsParticipant reports whether userID is the buyer or the seller.
func (o *Order) IsParticipant(userID string) bool {
	return o.RoleOf(userID) != RoleNone
}

// CounterpartyOf returns the other party's id for a participant.
func (o *Order) CounterpartyOf(userID string) string {
	if userID == o.BuyerID {
		return o.SellerID
	}
	return o.BuyerID
}
