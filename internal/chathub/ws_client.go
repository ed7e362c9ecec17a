package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"

	"github.com/gorilla/websocket"
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	UserID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.ServerEvent

	closeOnce sync.Once
}

func NewWebSocketClient(userID string, conn *websocket.Conn, hub *ManagerService) *WebSocketClient {
	return &WebSocketClient{
		UserID: userID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.ServerEvent, config.WSSendBufferSize),
	}
}

func (c *WebSocketClient) GetUserID() string                         { return c.UserID }
func (c *WebSocketClient) GetSendChannel() chan<- models.ServerEvent { return c.Send }

// Run starts the pumps for the connection.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the Send channel, which stops writePump.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// readPump decodes client events and forwards them to the hub. The sender is
// always the authenticated user of the connection.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.WSMaxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.WSPongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.WSPongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var evt models.ClientEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			log.Printf("Error decoding JSON from user %s: %v", c.UserID, err)
			continue
		}
		c.dispatch(evt)
	}
}

func (c *WebSocketClient) dispatch(evt models.ClientEvent) {
	switch evt.Event {
	case models.EventJoinOrderRoom, models.EventLeaveOrderRoom:
		var req models.RoomRequest
		if err := json.Unmarshal(evt.Data, &req); err != nil {
			log.Printf("Error decoding %s from user %s: %v", evt.Event, c.UserID, err)
			return
		}
		if evt.Event == models.EventJoinOrderRoom {
			c.Hub.Join(c, req.OrderID)
		} else {
			c.Hub.Leave(c, req.OrderID)
		}

	case models.EventSendMessage:
		var req models.SendMessageRequest
		if err := json.Unmarshal(evt.Data, &req); err != nil {
			log.Printf("Error decoding %s from user %s: %v", evt.Event, c.UserID, err)
			return
		}
		c.Hub.Submit(Inbound{
			From: c,
			Message: models.IncomingMessage{
				SenderID: c.UserID,
				OrderID:  req.OrderID,
				Text:     req.Message.Message,
			},
		})

	default:
		log.Printf("WARN: Unknown event %q from user %s", evt.Event, c.UserID)
	}
}

// writePump writes frames from Send to the connection, one frame per event,
// and keeps the connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.WSPingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
			if !ok {
				// Hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(frame); err != nil {
				log.Printf("Error writing to user %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
