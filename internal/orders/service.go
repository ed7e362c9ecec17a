// Package orders implements the order lifecycle: creation, the status machine,
// payment confirmation, the conversation log and reviews.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/notify"
	"gigmarket/backend/internal/storage"
)

// Service handles the business logic for orders.
type Service struct {
	Storage  storage.Storage
	Notifier notify.Notifier
}

// NewService creates a new order service. A nil notifier discards events.
func NewService(s storage.Storage, n notify.Notifier) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	return &Service{Storage: s, Notifier: n}
}

// storeErr converts storage errors into the order taxonomy.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("order: %w", ErrNotFound)
	case errors.Is(err, storage.ErrDuplicate):
		return ErrConflict
	case errors.Is(err, storage.ErrStaleStatus):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, storage.ErrOrderRejected):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if len(text) > config.MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

func (s *Service) emit(ctx context.Context, evt models.OrderEvent) {
	// Notifier failures never undo a committed write.
	_ = s.Notifier.NotifyOrderEvent(ctx, evt)
}

// CreateOrder opens an order for gigID between buyerID and sellerID, seeded with
// the buyer's first message.
func (s *Service) CreateOrder(ctx context.Context, gigID, buyerID, sellerID, initialMessage string) (*models.Order, error) {
	if buyerID == "" {
		return nil, ErrUnauthorized
	}
	if err := validateText(initialMessage); err != nil {
		return nil, err
	}
	if buyerID == sellerID {
		return nil, ErrSelfOrder
	}

	gig, err := s.Storage.GetGigByID(ctx, gigID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("gig %s: %w", gigID, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	if gig.SellerID != sellerID {
		return nil, fmt.Errorf("gig %s is not offered by %s: %w", gigID, sellerID, ErrNotFound)
	}

	order := &models.Order{GigID: gigID, BuyerID: buyerID, SellerID: sellerID}
	if err := s.Storage.CreateOrder(ctx, order, initialMessage); err != nil {
		return nil, storeErr(err)
	}

	s.emit(ctx, models.NewOrderEvent(models.OrderCreated, order, buyerID))
	return order, nil
}

// ListForUser returns every order userID takes part in.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Order, error) {
	list, err := s.Storage.FindOrdersForUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

// GetForParticipant loads an order with its conversation for one of its parties.
func (s *Service) GetForParticipant(ctx context.Context, orderID, userID string) (*models.Order, error) {
	order, err := s.Storage.FindOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !order.IsParticipant(userID) {
		return nil, ErrUnauthorized
	}
	return order, nil
}

// Conversation returns the full ordered message log of an order (snapshot load).
func (s *Service) Conversation(ctx context.Context, orderID, userID string) ([]models.Message, error) {
	order, err := s.GetForParticipant(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.Conversation == nil {
		return []models.Message{}, nil
	}
	return order.Conversation, nil
}

// AppendMessage adds a message from senderID to the end of the conversation.
// The returned message carries its server-assigned id and timestamp.
func (s *Service) AppendMessage(ctx context.Context, orderID, senderID, text string) (*models.Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	order, err := s.Storage.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !order.IsParticipant(senderID) {
		return nil, ErrUnauthorized
	}

	msg := &models.Message{OrderID: orderID, SenderID: senderID, Text: text}
	if err := s.Storage.AppendMessage(ctx, msg); err != nil {
		return nil, storeErr(err)
	}

	evt := models.NewOrderEvent(models.OrderMessage, order, senderID)
	evt.Message = msg
	s.emit(ctx, evt)
	return msg, nil
}

// UpdateStatus applies a status transition requested by actorID. On any error
// the stored status is left unchanged.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, requested models.OrderStatus, actorID string) (*models.Order, error) {
	if !requested.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, requested)
	}

	order, err := s.Storage.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}

	if err := CheckTransition(order.Status, order.RoleOf(actorID), requested); err != nil {
		return nil, err
	}

	updated, err := s.Storage.UpdateOrderStatus(ctx, orderID, order.Status, requested)
	if err != nil {
		return nil, storeErr(err)
	}

	s.emit(ctx, models.NewOrderEvent(models.OrderStatusChanged, updated, actorID))
	return updated, nil
}

// MarkPaid records a successful payment. It is only reachable from the payment
// callback and is idempotent: order.paid is emitted only by the call that
// actually recorded the payment. Rejected orders refuse payment.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (*models.Order, error) {
	order, changed, err := s.Storage.MarkOrderPaid(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !changed {
		return order, nil
	}

	s.emit(ctx, models.NewOrderEvent(models.OrderPaid, order, string(models.RoleSystem)))
	return order, nil
}

// AddReview lets the buyer rate the gig once the order is completed.
func (s *Service) AddReview(ctx context.Context, orderID, actorID string, rating int, comment string) (*models.Review, error) {
	if rating < config.MinRating || rating > config.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidReview, config.MinRating, config.MaxRating)
	}
	if len(comment) > config.MaxMessageLength {
		return nil, fmt.Errorf("%w: comment is too long", ErrInvalidReview)
	}

	order, err := s.Storage.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}
	if order.RoleOf(actorID) != models.RoleBuyer {
		return nil, ErrUnauthorized
	}
	if order.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}

	review := &models.Review{
		OrderID:  order.ID,
		GigID:    order.GigID,
		AuthorID: actorID,
		Rating:   rating,
		Comment:  strings.TrimSpace(comment),
	}
	if err := s.Storage.CreateReview(ctx, review); err != nil {
		return nil, storeErr(err)
	}

	evt := models.NewOrderEvent(models.OrderReviewed, order, actorID)
	evt.Review = review
	s.emit(ctx, evt)
	return review, nil
}

// ListReviews returns the reviews left for a gig, newest first.
func (s *Service) ListReviews(ctx context.Context, gigID string) ([]models.Review, error) {
	reviews, err := s.Storage.ListReviewsForGig(ctx, gigID)
	if err != nil {
		return nil, storeErr(err)
	}
	return reviews, nil
}
