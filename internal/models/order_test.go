package models_test

import (
	"encoding/json"
	"testing"

	"gigmarket/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusValid(t *testing.T) {
	for _, s := range models.AllStatuses {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}

	for _, s := range []models.OrderStatus{"", "in progress", "cancelled", "PAID"} {
		assert.False(t, s.Valid(), "status %q should be invalid", s)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, models.StatusRejected.Terminal())
	assert.True(t, models.StatusCompleted.Terminal())
	assert.False(t, models.StatusPending.Terminal())
	assert.False(t, models.StatusPaid.Terminal())
}

func TestOrderRoleOf(t *testing.T) {
	order := &models.Order{BuyerID: "buyer-1", SellerID: "seller-1"}

	tests := []struct {
		name   string
		userID string
		want   models.Role
	}{
		{"buyer", "buyer-1", models.RoleBuyer},
		{"seller", "seller-1", models.RoleSeller},
		{"stranger", "someone", models.RoleNone},
		{"empty id", "", models.RoleNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, order.RoleOf(tt.userID))
			assert.Equal(t, tt.want != models.RoleNone, order.IsParticipant(tt.userID))
		})
	}

	assert.Equal(t, "seller-1", order.CounterpartyOf("buyer-1"))
	assert.Equal(t, "buyer-1", order.CounterpartyOf("seller-1"))
}

func TestMessageJSONMatchesWireContract(t *testing.T) {
	msg := models.Message{ID: 7, OrderID: "o1", SenderID: "u1", Text: "hello"}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "u1", decoded["sender"])
	assert.Equal(t, "hello", decoded["message"])
	assert.Equal(t, "o1", decoded["orderId"])
	assert.Contains(t, decoded, "createdAt")
}

func TestRoomEventRoundTrip(t *testing.T) {
	payload := models.StatusUpdate{OrderID: "o1", Status: models.StatusPaid, Paid: true}

	evt, err := models.NewRoomEvent("o1", models.EventOrderStatus, payload)
	require.NoError(t, err)

	frame, err := json.Marshal(evt.ServerEvent())
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"orderStatus","data":{"orderId":"o1","status":"paid","paid":true}}`, string(frame))
}
