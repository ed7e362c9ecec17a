package handler

import (
	"net/http"

	"gigmarket/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	GigID          string `json:"gigId" binding:"required"`
	SellerID       string `json:"sellerId" binding:"required"`
	InitialMessage string `json:"initialMessage" binding:"required"`
}

// UpdateStatusRequest represents the request body for a status transition
type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// ReviewRequest represents the request body for reviewing a completed order
type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// CreateOrder handles POST /api/v1/orders - the caller becomes the buyer
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	order, err := h.Orders.CreateOrder(c.Request.Context(), req.GigID, GetUserID(c), req.SellerID, req.InitialMessage)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders
func (h *Handler) ListOrders(c *gin.Context) {
	list, err := h.Orders.ListForUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		respondOrderError(c, err)
		return
	}

	respondOK(c, http.StatusOK, list)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.Orders.GetForParticipant(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		respondOrderError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// UpdateOrderStatus handles POST /api/v1/orders/:id/status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	order, err := h.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, GetUserID(c))
	if err != nil {
		respondOrderError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// AddReview handles POST /api/v1/orders/:id/review
func (h *Handler) AddReview(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	review, err := h.Orders.AddReview(c.Request.Context(), c.Param("id"), GetUserID(c), req.Rating, req.Comment)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, review)
}

// ListGigReviews handles GET /api/v1/gigs/:id/reviews
func (h *Handler) ListGigReviews(c *gin.Context) {
	reviews, err := h.Orders.ListReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondOrderError(c, err)
		return
	}

	respondOK(c, http.StatusOK, reviews)
}
