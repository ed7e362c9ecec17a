// Package session is a client-side controller for one user's order chat. It
// keeps a local view of the open order's conversation, fed by server events.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

var (
	ErrNoOrder = errors.New("no order is open")
	ErrClosed  = errors.New("session is closed")
)

// Event is one update to the view.
type Event struct {
	Name    string
	OrderID string

	Message  *models.Message
	Messages []models.Message
	Status   *models.StatusUpdate
	Error    *models.ErrorNotice
}

type Session struct {
	conn    *websocket.Conn
	apiBase string
	token   string
	userID  string
	http    *http.Client

	writeMu sync.Mutex

	mu       sync.Mutex
	orderID  string
	messages []models.Message
	status   *models.StatusUpdate
	closed   bool

	events chan Event
	done   chan struct{}
}

// Dial connects to the websocket endpoint at wsURL (e.g. ws://host/ws). The HTTP
// API is expected on the same host.
func Dial(ctx context.Context, wsURL, token string) (*Session, error) {
	apiBase, err := apiBaseFor(wsURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	s := &Session{
		conn:    conn,
		apiBase: apiBase,
		token:   token,
		userID:  subjectOf(token),
		http:    &http.Client{Timeout: 10 * time.Second},
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func apiBaseFor(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path, u.RawQuery = "", ""
	return u.String(), nil
}

// subjectOf reads the user id from the token without verifying it; the server
// ignores the sender field anyway.
func subjectOf(token string) string {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}

// Open switches the view to orderID. The previous room is left, and the view
// is empty until the server's snapshot arrives.
func (s *Session) Open(orderID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	prev := s.orderID
	s.orderID = orderID
	s.messages = nil
	s.status = nil
	s.mu.Unlock()

	if prev != "" && prev != orderID {
		if err := s.write(models.EventLeaveOrderRoom, models.RoomRequest{OrderID: prev}); err != nil {
			return err
		}
	}
	return s.write(models.EventJoinOrderRoom, models.RoomRequest{OrderID: orderID})
}

// Send submits text to the open order and returns without waiting. The message
// shows up in Messages once the server broadcasts it back.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	orderID := s.orderID
	s.mu.Unlock()
	if orderID == "" {
		return ErrNoOrder
	}

	return s.write(models.EventSendMessage, models.SendMessageRequest{
		OrderID: orderID,
		Message: models.OutgoingMessage{
			Sender:    s.userID,
			Message:   text,
			CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
}

// Messages returns a copy of the current conversation view.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// Status returns the last status pushed for the open order, if any.
func (s *Session) Status() *models.StatusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Events streams view updates. Updates are dropped when nobody reads; Messages
// still reflects them.
func (s *Session) Events() <-chan Event {
	return s.events
}

// UpdateStatus asks the server to move orderID to status.
func (s *Session) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	body, err := json.Marshal(map[string]models.OrderStatus{"status": status})
	if err != nil {
		return nil, err
	}

	endpoint := s.apiBase + "/api/v1/orders/" + url.PathEscape(orderID) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool          `json:"success"`
		Data    *models.Order `json:"data"`
		Error   *APIError     `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if !envelope.Success {
		if envelope.Error == nil {
			envelope.Error = &APIError{Code: "UNKNOWN"}
		}
		envelope.Error.Status = resp.StatusCode
		return nil, envelope.Error
	}
	return envelope.Data, nil
}

// APIError is an error envelope returned by the HTTP API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Close leaves the open room and closes the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	orderID := s.orderID
	s.mu.Unlock()

	if orderID != "" {
		_ = s.write(models.EventLeaveOrderRoom, models.RoomRequest{OrderID: orderID})
	}

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(config.WSWriteWait))
	s.writeMu.Unlock()

	err := s.conn.Close()
	<-s.done
	return err
}

func (s *Session) write(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
	return s.conn.WriteJSON(models.ClientEvent{Event: event, Data: data})
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		var frame models.RoomEvent
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WARN: session read failed: %v", err)
			}
			return
		}
		if evt, ok := s.apply(frame); ok {
			select {
			case s.events <- evt:
			default:
			}
		}
	}
}

// apply folds a server frame into the view. Frames for other orders are ignored.
func (s *Session) apply(frame models.RoomEvent) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt := Event{Name: frame.Event}
	switch frame.Event {
	case models.EventConversation:
		var snap models.ConversationSnapshot
		if err := json.Unmarshal(frame.Data, &snap); err != nil || snap.OrderID != s.orderID {
			return evt, false
		}
		s.messages = append([]models.Message(nil), snap.Messages...)
		evt.OrderID, evt.Messages = snap.OrderID, s.messages

	case models.EventNewMessage:
		var msg models.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil || msg.OrderID != s.orderID {
			return evt, false
		}
		if !s.insert(msg) {
			return evt, false
		}
		evt.OrderID, evt.Message = msg.OrderID, &msg

	case models.EventOrderStatus:
		var st models.StatusUpdate
		if err := json.Unmarshal(frame.Data, &st); err != nil || st.OrderID != s.orderID {
			return evt, false
		}
		s.status = &st
		evt.OrderID, evt.Status = st.OrderID, &st

	case models.EventErrorMessage:
		var notice models.ErrorNotice
		if err := json.Unmarshal(frame.Data, &notice); err != nil {
			return evt, false
		}
		evt.OrderID, evt.Error = notice.OrderID, &notice

	default:
		return evt, false
	}
	return evt, true
}

// insert adds msg in id order unless the snapshot already had it.
func (s *Session) insert(msg models.Message) bool {
	i := sort.Search(len(s.messages), func(i int) bool { return s.messages[i].ID >= msg.ID })
	if i < len(s.messages) && s.messages[i].ID == msg.ID {
		return false
	}
	s.messages = append(s.messages, models.Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = msg
	return true
}
