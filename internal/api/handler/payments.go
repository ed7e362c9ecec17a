package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const paymentSecretHeader = "X-Payment-Secret"

// MarkOrderPaid handles POST /api/v1/payments/orders/:id/paid. It is called by
// the payment provider, authenticated by a shared secret rather than a user token.
func (h *Handler) MarkOrderPaid(c *gin.Context) {
	given := c.GetHeader(paymentSecretHeader)
	if given == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.PaymentSecret)) != 1 {
		respondError(c, http.StatusUnauthorized, "INVALID_SECRET", "Payment callback secret is invalid")
		return
	}

	order, err := h.Orders.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondOrderError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}
