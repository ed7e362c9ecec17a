// Package chathub is the realtime broker for order conversations. A single hub
// goroutine owns the room tables; connections talk to it over channels.
package chathub

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/orders"
)

// OrderLog is the conversation log the hub reads snapshots from and appends to.
type OrderLog interface {
	Conversation(ctx context.Context, orderID, userID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, orderID, senderID, text string) (*models.Message, error)
}

type clientSet map[Client]struct{}

type roomSet map[string]struct{}

// ManagerService is the hub. rooms and memberships are only touched by Run.
type ManagerService struct {
	rooms       map[string]clientSet
	memberships map[Client]roomSet

	// Channels
	RegisterCh   chan Client
	UnregisterCh chan Client
	JoinCh       chan RoomCommand
	LeaveCh      chan RoomCommand
	IncomingCh   chan Inbound

	broadcastCh chan models.RoomEvent
	inspectCh   chan func()
	done        chan struct{}

	Orders OrderLog
	Relay  Relay

	relayActive atomic.Bool
}

// NewManagerService creates a hub. relay may be nil for a single instance.
func NewManagerService(orderLog OrderLog, relay Relay) *ManagerService {
	return &ManagerService{
		rooms:        make(map[string]clientSet),
		memberships:  make(map[Client]roomSet),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		JoinCh:       make(chan RoomCommand),
		LeaveCh:      make(chan RoomCommand),
		IncomingCh:   make(chan Inbound),
		broadcastCh:  make(chan models.RoomEvent, 64),
		inspectCh:    make(chan func()),
		done:         make(chan struct{}),
		Orders:       orderLog,
		Relay:        relay,
	}
}

// Run processes hub commands until ctx is cancelled. All connected clients are
// closed on exit.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	defer m.relayActive.Store(false)

	var relayed <-chan models.RoomEvent
	if m.Relay != nil {
		ch, err := m.Relay.SubscribeToOrderRooms(ctx)
		if err != nil {
			log.Printf("WARN: Room relay unavailable, broadcasting locally only: %v", err)
		} else {
			relayed = ch
			m.relayActive.Store(true)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for c := range m.memberships {
				m.dropClient(c)
			}
			return

		case c := <-m.RegisterCh:
			m.register(c)

		case c := <-m.UnregisterCh:
			m.dropClient(c)

		case cmd := <-m.JoinCh:
			m.joinRoom(ctx, cmd)

		case cmd := <-m.LeaveCh:
			m.leaveRoom(cmd)

		case in := <-m.IncomingCh:
			m.handleIncomingMessage(ctx, in)

		case evt := <-m.broadcastCh:
			m.broadcast(evt)

		case evt, ok := <-relayed:
			if !ok {
				log.Println("WARN: Room relay subscription closed, broadcasting locally only")
				relayed = nil
				m.relayActive.Store(false)
				continue
			}
			m.broadcast(evt)

		case fn := <-m.inspectCh:
			fn()
		}
	}
}

func (m *ManagerService) register(c Client) {
	if _, ok := m.memberships[c]; !ok {
		m.memberships[c] = make(roomSet)
	}
}

// dropClient removes c from every room and closes it. Safe to call twice.
func (m *ManagerService) dropClient(c Client) {
	joined, ok := m.memberships[c]
	if !ok {
		return
	}
	for orderID := range joined {
		m.removeFromRoom(orderID, c)
	}
	delete(m.memberships, c)
	c.Close()
}

func (m *ManagerService) removeFromRoom(orderID string, c Client) {
	members := m.rooms[orderID]
	delete(members, c)
	if len(members) == 0 {
		delete(m.rooms, orderID)
	}
}

// joinRoom sends the conversation snapshot and then subscribes the client. Both
// happen here, so no broadcast can fall between them.
func (m *ManagerService) joinRoom(ctx context.Context, cmd RoomCommand) {
	c := cmd.Client
	m.register(c)

	if cmd.OrderID == "" {
		m.sendError(c, "", "orderId is required")
		return
	}

	messages, err := m.Orders.Conversation(ctx, cmd.OrderID, c.GetUserID())
	if err != nil {
		m.sendError(c, cmd.OrderID, reasonFor(err))
		return
	}

	snapshot := models.ServerEvent{
		Event: models.EventConversation,
		Data:  models.ConversationSnapshot{OrderID: cmd.OrderID, Messages: messages},
	}
	if !m.deliver(c, snapshot) {
		return
	}

	if _, ok := m.rooms[cmd.OrderID]; !ok {
		m.rooms[cmd.OrderID] = make(clientSet)
	}
	m.rooms[cmd.OrderID][c] = struct{}{}
	m.memberships[c][cmd.OrderID] = struct{}{}
}

func (m *ManagerService) leaveRoom(cmd RoomCommand) {
	joined, ok := m.memberships[cmd.Client]
	if !ok {
		return
	}
	delete(joined, cmd.OrderID)
	m.removeFromRoom(cmd.OrderID, cmd.Client)
}

// handleIncomingMessage persists the message and then fans it out. Nothing is
// broadcast unless the append succeeded. With a relay the append and publish
// run under the order's room lock.
func (m *ManagerService) handleIncomingMessage(ctx context.Context, in Inbound) {
	msg := in.Message
	if msg.OrderID == "" {
		m.sendError(in.From, "", "orderId is required")
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		m.sendError(in.From, msg.OrderID, reasonFor(orders.ErrEmptyMessage))
		return
	}

	if m.relayActive.Load() {
		lockCtx, cancel := context.WithTimeout(ctx, config.RoomLockWait)
		unlock, err := m.Relay.LockOrderRoom(lockCtx, msg.OrderID, config.RoomLockTTL)
		cancel()
		if err != nil {
			log.Printf("WARN: Room lock for order %s unavailable, publishing unordered: %v", msg.OrderID, err)
		} else {
			defer unlock()
		}
	}

	saved, err := m.Orders.AppendMessage(ctx, msg.OrderID, msg.SenderID, msg.Text)
	if err != nil {
		if errors.Is(err, orders.ErrPersistence) {
			log.Printf("ERROR: Failed to save message for order %s: %v", msg.OrderID, err)
		}
		m.sendError(in.From, msg.OrderID, reasonFor(err))
		return
	}

	evt, err := models.NewRoomEvent(msg.OrderID, models.EventNewMessage, saved)
	if err != nil {
		log.Printf("ERROR: Failed to encode message %d: %v", saved.ID, err)
		return
	}
	m.publish(ctx, evt)
}

// publish hands evt to the relay, or broadcasts locally when there is none.
// Called on the hub goroutine only.
func (m *ManagerService) publish(ctx context.Context, evt models.RoomEvent) {
	if m.relayActive.Load() {
		err := m.Relay.PublishRoomEvent(ctx, evt)
		if err == nil {
			// Our own subscription delivers it back for local fan-out.
			return
		}
		log.Printf("WARN: Failed to relay %s for order %s, broadcasting locally: %v", evt.Event, evt.OrderID, err)
	}
	m.broadcast(evt)
}

func (m *ManagerService) broadcast(evt models.RoomEvent) {
	frame := evt.ServerEvent()
	for c := range m.rooms[evt.OrderID] {
		m.deliver(c, frame)
	}
}

// deliver writes without blocking. A client whose buffer is full is dropped.
func (m *ManagerService) deliver(c Client, frame models.ServerEvent) bool {
	select {
	case c.GetSendChannel() <- frame:
		return true
	default:
		log.Printf("WARN: Send buffer full for user %s, dropping connection", c.GetUserID())
		m.dropClient(c)
		return false
	}
}

func (m *ManagerService) sendError(c Client, orderID, reason string) {
	m.deliver(c, models.ServerEvent{
		Event: models.EventErrorMessage,
		Data:  models.ErrorNotice{OrderID: orderID, Reason: reason},
	})
}

// reasonFor turns an order error into a message safe to show the client.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return "order not found"
	case errors.Is(err, orders.ErrUnauthorized):
		return "you are not a participant of this order"
	case errors.Is(err, orders.ErrEmptyMessage):
		return "message is empty"
	case errors.Is(err, orders.ErrMessageTooLong):
		return "message is too long"
	}
	return "message could not be saved, please retry"
}

// NotifyOrderEvent pushes status changes to the order's room. Chat messages are
// already broadcast by the hub itself and are ignored here.
func (m *ManagerService) NotifyOrderEvent(ctx context.Context, evt models.OrderEvent) error {
	switch evt.Type {
	case models.OrderCreated, models.OrderStatusChanged, models.OrderPaid:
	default:
		return nil
	}

	roomEvt, err := models.NewRoomEvent(evt.OrderID, models.EventOrderStatus, models.StatusUpdate{
		OrderID: evt.OrderID,
		Status:  evt.Status,
		Paid:    evt.Paid,
	})
	if err != nil {
		return err
	}

	if m.relayActive.Load() {
		if err := m.Relay.PublishRoomEvent(ctx, roomEvt); err == nil {
			return nil
		}
	}

	select {
	case m.broadcastCh <- roomEvt:
		return nil
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register, Unregister, Join, Leave and Submit hand a command to the hub. They
// return without effect once the hub has stopped.

func (m *ManagerService) Register(c Client) {
	select {
	case m.RegisterCh <- c:
	case <-m.done:
	}
}

func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

func (m *ManagerService) Join(c Client, orderID string) {
	select {
	case m.JoinCh <- RoomCommand{Client: c, OrderID: orderID}:
	case <-m.done:
	}
}

func (m *ManagerService) Leave(c Client, orderID string) {
	select {
	case m.LeaveCh <- RoomCommand{Client: c, OrderID: orderID}:
	case <-m.done:
	}
}

func (m *ManagerService) Submit(in Inbound) {
	select {
	case m.IncomingCh <- in:
	case <-m.done:
	}
}

// RoomMembers returns the user ids currently joined to an order room.
func (m *ManagerService) RoomMembers(orderID string) []string {
	var ids []string
	m.inspect(func() {
		for c := range m.rooms[orderID] {
			ids = append(ids, c.GetUserID())
		}
	})
	return ids
}

// RoomsOf returns the order rooms c is joined to.
func (m *ManagerService) RoomsOf(c Client) []string {
	var ids []string
	m.inspect(func() {
		for id := range m.memberships[c] {
			ids = append(ids, id)
		}
	})
	return ids
}

func (m *ManagerService) inspect(fn func()) {
	finished := make(chan struct{})
	select {
	case m.inspectCh <- func() { fn(); close(finished) }:
		<-finished
	case <-m.done:
	}
}
