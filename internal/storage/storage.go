package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gigmarket/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrStaleStatus   = errors.New("order status changed concurrently")
	ErrRedisDisabled = errors.New("redis is not configured")
	ErrOrderRejected = errors.New("order was rejected")
)

// Statuses that a late payment confirmation must not overwrite.
var paidStatusFrozen = []string{
	string(models.StatusInProgress),
	string(models.StatusCompleted),
}

// Statuses a payment confirmation moves to paid.
var paidStatusOpen = []string{
	string(models.StatusPending),
	string(models.StatusAccepted),
}

type Storage interface {
	CreateOrder(ctx context.Context, order *models.Order, initialMessage string) error
	FindOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	FindOrdersForUser(ctx context.Context, userID string) ([]models.Order, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus) (*models.Order, error)
	MarkOrderPaid(ctx context.Context, orderID string) (order *models.Order, changed bool, err error)

	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	SaveGig(ctx context.Context, gig *models.Gig) error
	GetGigByID(ctx context.Context, gigID string) (*models.Gig, error)

	CreateReview(ctx context.Context, review *models.Review) error
	ListReviewsForGig(ctx context.Context, gigID string) ([]models.Review, error)

	PublishRoomEvent(ctx context.Context, evt models.RoomEvent) error
	SubscribeToOrderRooms(ctx context.Context) (<-chan models.RoomEvent, error)
	LockOrderRoom(ctx context.Context, orderID string, ttl time.Duration) (unlock func(), err error)

	SaveJob(ctx context.Context, job *models.Job, ttl time.Duration) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

// Service is the gorm/redis implementation of Storage. Redis may be nil, in
// which case relay and job methods return ErrRedisDisabled.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

func orderedConversation(db *gorm.DB) *gorm.DB {
	return db.Order("order_messages.id ASC")
}

// CreateOrder inserts order in status pending with a single message authored by
// the buyer. A second order for the same gig/buyer/seller triple is rejected.
func (s *Service) CreateOrder(ctx context.Context, order *models.Order, initialMessage string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Order{}).
			Where("gig_id = ? AND buyer_id = ? AND seller_id = ?", order.GigID, order.BuyerID, order.SellerID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicate
		}

		order.Status = models.StatusPending
		order.Paid = false
		order.Conversation = []models.Message{{
			SenderID: order.BuyerID,
			Text:     initialMessage,
		}}

		// The unique index still catches a concurrent create that passed the check above.
		if err := tx.Create(order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			log.Printf("ERROR: Failed to create order for gig %s: %v", order.GigID, err)
			return err
		}
		return nil
	})
}

// FindOrder returns the order with its conversation in append order.
func (s *Service) FindOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Preload("Conversation", orderedConversation).
		Where("id = ?", orderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByID returns the order row without its conversation.
func (s *Service) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindOrdersForUser returns every order where userID is buyer or seller, joined
// with gig and both profiles for display.
func (s *Service) FindOrdersForUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := s.DB.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Preload("Gig").
		Preload("Buyer").
		Preload("Seller").
		Preload("Conversation", orderedConversation).
		Order("created_at ASC, id ASC").
		Find(&orders).Error; err != nil {
		log.Printf("ERROR: Failed to list orders for user %s: %v", userID, err)
		return nil, err
	}
	return orders, nil
}

// AppendMessage adds msg to the end of its order's conversation. It is a single
// INSERT so appends from both parties never overwrite each other.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	db := s.DB.WithContext(ctx)

	var n int64
	if err := db.Model(&models.Order{}).Where("id = ?", msg.OrderID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := db.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for order %s: %v", msg.OrderID, err)
		return err
	}
	return nil
}

// UpdateOrderStatus moves the order from one status to another only if it is
// still in `from`. A lost race yields ErrStaleStatus and changes nothing.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus) (*models.Order, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		log.Printf("ERROR: Failed to update status of order %s: %v", orderID, res.Error)
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.FindOrder(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, ErrStaleStatus
	}
	return s.FindOrder(ctx, orderID)
}

// MarkOrderPaid sets paid and moves the order to status paid in one statement.
// Orders already in progress or completed keep their status; rejected orders
// refuse the payment with ErrOrderRejected. changed is false when the order was
// already paid, so callers can skip repeated side effects.
func (s *Service) MarkOrderPaid(ctx context.Context, orderID string) (order *models.Order, changed bool, err error) {
	res := s.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status <> ? AND (paid = ? OR status IN ?)",
			orderID, models.StatusRejected, false, paidStatusOpen).
		Updates(map[string]interface{}{
			"paid":   true,
			"status": gorm.Expr("CASE WHEN status IN ? THEN status ELSE ? END", paidStatusFrozen, string(models.StatusPaid)),
		})
	if res.Error != nil {
		log.Printf("ERROR: Failed to mark order %s paid: %v", orderID, res.Error)
		return nil, false, res.Error
	}

	order, err = s.FindOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if res.RowsAffected == 0 && order.Status == models.StatusRejected {
		log.Printf("WARN: Payment confirmed for rejected order %s; not applied", orderID)
		return nil, false, ErrOrderRejected
	}
	return order, res.RowsAffected > 0, nil
}

// SaveUser upserts a profile row.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Save(user).Error
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveGig upserts a catalog row.
func (s *Service) SaveGig(ctx context.Context, gig *models.Gig) error {
	return s.DB.WithContext(ctx).Save(gig).Error
}

func (s *Service) GetGigByID(ctx context.Context, gigID string) (*models.Gig, error) {
	var gig models.Gig
	err := s.DB.WithContext(ctx).Where("id = ?", gigID).First(&gig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gig, nil
}

// CreateReview stores a review; the unique order_id index allows one per order.
func (s *Service) CreateReview(ctx context.Context, review *models.Review) error {
	db := s.DB.WithContext(ctx)

	var n int64
	if err := db.Model(&models.Review{}).Where("order_id = ?", review.OrderID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicate
	}

	if err := db.Create(review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (s *Service) ListReviewsForGig(ctx context.Context, gigID string) ([]models.Review, error) {
	var reviews []models.Review
	if err := s.DB.WithContext(ctx).
		Where("gig_id = ?", gigID).
		Order("created_at DESC, id DESC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}
