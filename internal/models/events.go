package models

import "encoding/json"

// Client -> server event names.
const (
	EventJoinOrderRoom  = "joinOrderRoom"
	EventLeaveOrderRoom = "leaveOrderRoom"
	EventSendMessage    = "sendMessage"
)

// Server -> client event names.
const (
	EventConversation = "conversation"
	EventNewMessage   = "newMessage"
	EventOrderStatus  = "orderStatus"
	EventErrorMessage = "errorMessage"
)

// ClientEvent is a frame received from a websocket client.
// Data is decoded according to Event.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomRequest is the payload of joinOrderRoom and leaveOrderRoom.
type RoomRequest struct {
	OrderID string `json:"orderId"`
}

// OutgoingMessage is the message body a client proposes. Sender and CreatedAt
// are informational only; the hub uses the authenticated identity and its own clock.
type OutgoingMessage struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// SendMessageRequest is the payload of sendMessage.
type SendMessageRequest struct {
	OrderID string          `json:"orderId"`
	Message OutgoingMessage `json:"message"`
}

// IncomingMessage is a send request tagged with the originating connection's user.
type IncomingMessage struct {
	SenderID string
	OrderID  string
	Text     string
}

// ServerEvent is a frame written to websocket clients.
type ServerEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// ConversationSnapshot is the payload of the conversation event.
type ConversationSnapshot struct {
	OrderID  string    `json:"orderId"`
	Messages []Message `json:"messages"`
}

// StatusUpdate is the payload of the orderStatus event.
type StatusUpdate struct {
	OrderID string      `json:"orderId"`
	Status  OrderStatus `json:"status"`
	Paid    bool        `json:"paid"`
}

// ErrorNotice is the payload of the errorMessage event.
type ErrorNotice struct {
	OrderID string `json:"orderId,omitempty"`
	Reason  string `json:"reason"`
}

// RoomEvent is a server event addressed to every member of one order room.
// It is the unit relayed between instances over Redis.
type RoomEvent struct {
	OrderID string          `json:"orderId"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// NewRoomEvent encodes payload into a RoomEvent.
func NewRoomEvent(orderID, event string, payload interface{}) (RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return RoomEvent{}, err
	}
	return RoomEvent{OrderID: orderID, Event: event, Data: data}, nil
}

// ServerEvent converts the relayed event back into a frame for clients.
func (e RoomEvent) ServerEvent() ServerEvent {
	return ServerEvent{Event: e.Event, Data: e.Data}
}

// OrderEventType names a lifecycle change of an order.
type OrderEventType string

const (
	OrderCreated       OrderEventType = "order.created"
	OrderStatusChanged OrderEventType = "order.status_changed"
	OrderPaid          OrderEventType = "order.paid"
	OrderMessage       OrderEventType = "order.message"
	OrderReviewed      OrderEventType = "order.reviewed"
)

// OrderEvent describes a committed change to an order. It is emitted after the
// store write succeeded.
type OrderEvent struct {
	Type     OrderEventType `json:"type"`
	OrderID  string         `json:"orderId"`
	ActorID  string         `json:"actorId,omitempty"`
	BuyerID  string         `json:"buyerId"`
	SellerID string         `json:"sellerId"`
	Status   OrderStatus    `json:"status"`
	Paid     bool           `json:"paid"`
	Message  *Message       `json:"message,omitempty"`
	Review   *Review        `json:"review,omitempty"`
}

// NewOrderEvent fills the order-derived fields of an event.
func NewOrderEvent(t OrderEventType, o *Order, actorID string) OrderEvent {
	return OrderEvent{
		Type:     t,
		OrderID:  o.ID,
		ActorID:  actorID,
		BuyerID:  o.BuyerID,
		SellerID: o.SellerID,
		Status:   o.Status,
		Paid:     o.Paid,
	}
}
