package chathub

import "gigmarket/backend/internal/models"

// Client is the interface for any type of connection (e.g., WebSocket).
// It abstracts the underlying transport so the hub manages all connections
// uniformly.
type Client interface {
	// GetUserID returns the authenticated user behind the connection.
	GetUserID() string

	// GetSendChannel returns the channel the hub writes frames to. Only the hub
	// sends on it and only the hub closes it, through Close.
	GetSendChannel() chan<- models.ServerEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close closes the send channel, which stops the write pump.
	Close()
}

// RoomCommand asks the hub to add or remove a client from an order room.
type RoomCommand struct {
	Client  Client
	OrderID string
}

// Inbound is a send request together with the connection it came from, so
// failures can be reported back to that connection only.
type Inbound struct {
	From    Client
	Message models.IncomingMessage
}
