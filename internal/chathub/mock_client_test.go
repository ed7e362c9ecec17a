package chathub_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"gigmarket/backend/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	userID string
	send   chan models.ServerEvent

	mu     sync.Mutex
	closed bool
}

func newMockClient(userID string) *MockClient {
	return newMockClientWithBuffer(userID, 16)
}

func newMockClientWithBuffer(userID string, size int) *MockClient {
	return &MockClient{userID: userID, send: make(chan models.ServerEvent, size)}
}

func (c *MockClient) GetUserID() string                         { return c.userID }
func (c *MockClient) GetSendChannel() chan<- models.ServerEvent { return c.send }
func (c *MockClient) Run()                                      {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *MockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next waits for the next frame sent to the client.
func (c *MockClient) next(t *testing.T) models.ServerEvent {
	t.Helper()
	select {
	case evt, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return evt
	case <-time.After(time.Second):
		t.Fatalf("no event for %s", c.userID)
	}
	return models.ServerEvent{}
}

// expectNothing asserts no frame arrives shortly.
func (c *MockClient) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case evt := <-c.send:
		t.Fatalf("unexpected event for %s: %+v", c.userID, evt)
	case <-time.After(50 * time.Millisecond):
	}
}

// decode re-reads a frame's payload into out, whatever its in-memory form.
func decode(t *testing.T, evt models.ServerEvent, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(evt.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// MockOrderLog is a testify mock of chathub.OrderLog.
type MockOrderLog struct {
	mock.Mock
}

func (m *MockOrderLog) Conversation(ctx context.Context, orderID, userID string) ([]models.Message, error) {
	args := m.Called(orderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockOrderLog) AppendMessage(ctx context.Context, orderID, senderID, text string) (*models.Message, error) {
	args := m.Called(orderID, senderID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// fakeRelay loops published events back to subscribers, like a Redis channel.
type fakeRelay struct {
	mu        sync.Mutex
	published []models.RoomEvent
	subs      []chan models.RoomEvent
	steps     []string
	lockErr   error
}

func (r *fakeRelay) record(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *fakeRelay) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func (r *fakeRelay) LockOrderRoom(_ context.Context, orderID string, _ time.Duration) (func(), error) {
	if r.lockErr != nil {
		return nil, r.lockErr
	}
	r.record("lock " + orderID)
	return func() { r.record("unlock " + orderID) }, nil
}

func (r *fakeRelay) PublishRoomEvent(_ context.Context, evt models.RoomEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, "publish "+evt.OrderID)
	r.published = append(r.published, evt)
	for _, ch := range r.subs {
		ch <- evt
	}
	return nil
}

func (r *fakeRelay) SubscribeToOrderRooms(ctx context.Context) (<-chan models.RoomEvent, error) {
	ch := make(chan models.RoomEvent, 16)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch, nil
}

func (r *fakeRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published)
}
