package session_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gigmarket/backend/internal/api/handler"
	"gigmarket/backend/internal/chathub"
	"gigmarket/backend/internal/jobs"
	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/notify"
	"gigmarket/backend/internal/orders"
	"gigmarket/backend/internal/session"
	"gigmarket/backend/internal/storage/storagetest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	wsURL   string
	auth    *handler.Authenticator
	hub     *chathub.ManagerService
	orders  *orders.Service
	fixture storagetest.Fixture
}

func startServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storagetest.NewService(t)
	f := storagetest.Seed(t, store)

	notifiers := notify.NewMulti()
	orderSvc := orders.NewService(store, notifiers)
	hub := chathub.NewManagerService(orderSvc, nil)
	notifiers.Add(hub)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	auth := handler.NewAuthenticator("session-test-secret", "gigmarket-test")
	h := handler.NewHandler(orderSvc, hub, jobs.NewTracker(store, time.Hour), auth, "pay", nil)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &server{
		wsURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		auth:    auth,
		hub:     hub,
		orders:  orderSvc,
		fixture: f,
	}
}

func (s *server) dial(t *testing.T, userID string) *session.Session {
	t.Helper()
	token, err := s.auth.IssueToken(userID, time.Hour)
	require.NoError(t, err)

	sess, err := session.Dial(context.Background(), s.wsURL, token)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

// waitFor reads events until one named name arrives.
func waitFor(t *testing.T, sess *session.Session, name string) session.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-sess.Events():
			require.True(t, ok, "session closed while waiting for %s", name)
			if evt.Name == name {
				return evt
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", name)
		}
	}
}

func TestSession_TwoPartiesChat(t *testing.T) {
	srv := startServer(t)
	f := srv.fixture
	ctx := context.Background()

	order, err := srv.orders.CreateOrder(ctx, f.Gig.ID, f.Buyer.ID, f.Seller.ID, "Hi")
	require.NoError(t, err)

	buyer := srv.dial(t, f.Buyer.ID)
	seller := srv.dial(t, f.Seller.ID)

	require.NoError(t, buyer.Open(order.ID))
	require.NoError(t, seller.Open(order.ID))
	snap := waitFor(t, buyer, models.EventConversation)
	assert.Len(t, snap.Messages, 1)
	waitFor(t, seller, models.EventConversation)

	require.NoError(t, buyer.Send("hello"))

	for _, sess := range []*session.Session{buyer, seller} {
		evt := waitFor(t, sess, models.EventNewMessage)
		require.NotNil(t, evt.Message)
		assert.Equal(t, "hello", evt.Message.Text)
		assert.Equal(t, f.Buyer.ID, evt.Message.SenderID)

		msgs := sess.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "Hi", msgs[0].Text)
		assert.Equal(t, "hello", msgs[1].Text)
	}

	updated, err := seller.UpdateStatus(ctx, order.ID, models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, updated.Status)

	evt := waitFor(t, buyer, models.EventOrderStatus)
	assert.Equal(t, models.StatusAccepted, evt.Status.Status)
	assert.Equal(t, models.StatusAccepted, buyer.Status().Status)
}

func TestSession_UpdateStatusError(t *testing.T) {
	srv := startServer(t)
	f := srv.fixture
	ctx := context.Background()

	order, err := srv.orders.CreateOrder(ctx, f.Gig.ID, f.Buyer.ID, f.Seller.ID, "Hi")
	require.NoError(t, err)

	buyer := srv.dial(t, f.Buyer.ID)
	_, err = buyer.UpdateStatus(ctx, order.ID, models.StatusAccepted)

	var apiErr *session.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
}

func TestSession_SendWithoutOrder(t *testing.T) {
	srv := startServer(t)
	sess := srv.dial(t, srv.fixture.Buyer.ID)

	assert.ErrorIs(t, sess.Send("hello"), session.ErrNoOrder)
}

func TestSession_ErrorIsReportedToSenderOnly(t *testing.T) {
	srv := startServer(t)
	f := srv.fixture
	ctx := context.Background()

	order, err := srv.orders.CreateOrder(ctx, f.Gig.ID, f.Buyer.ID, f.Seller.ID, "Hi")
	require.NoError(t, err)

	buyer := srv.dial(t, f.Buyer.ID)
	require.NoError(t, buyer.Open(order.ID))
	waitFor(t, buyer, models.EventConversation)

	require.NoError(t, buyer.Send("   "))
	evt := waitFor(t, buyer, models.EventErrorMessage)
	assert.Equal(t, order.ID, evt.OrderID)
	assert.Len(t, buyer.Messages(), 1)
}

func TestSession_OpenLeavesPreviousRoom(t *testing.T) {
	srv := startServer(t)
	f := srv.fixture
	ctx := context.Background()

	first, err := srv.orders.CreateOrder(ctx, f.Gig.ID, f.Buyer.ID, f.Seller.ID, "first")
	require.NoError(t, err)

	other := &models.Gig{SellerID: f.Seller.ID, Title: "Logo", Price: 100000, DeliveryDays: 2}
	require.NoError(t, srv.orders.Storage.SaveGig(ctx, other))
	second, err := srv.orders.CreateOrder(ctx, other.ID, f.Buyer.ID, f.Seller.ID, "second")
	require.NoError(t, err)

	buyer := srv.dial(t, f.Buyer.ID)
	require.NoError(t, buyer.Open(first.ID))
	waitFor(t, buyer, models.EventConversation)

	require.NoError(t, buyer.Open(second.ID))
	snap := waitFor(t, buyer, models.EventConversation)
	assert.Equal(t, second.ID, snap.OrderID)
	require.Len(t, buyer.Messages(), 1)
	assert.Equal(t, "second", buyer.Messages()[0].Text)

	assert.Eventually(t, func() bool {
		return len(srv.hub.RoomMembers(first.ID)) == 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{f.Buyer.ID}, srv.hub.RoomMembers(second.ID))
}
