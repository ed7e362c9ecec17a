// Package storagetest provides sqlite-backed storage for tests.
package storagetest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// MaxOpenConns lets concurrent tests run on separate connections, as they do
// against postgres.
const MaxOpenConns = 8

// NewDB opens a private file-backed sqlite database with all tables migrated.
// WAL and immediate transactions let several connections write without
// deadlocking; writers wait on the busy timeout instead of failing.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gigmarket.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), storage.GormConfig())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	t.Cleanup(func() { sqlDB.Close() })

	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// NewService returns a Storage service without Redis.
func NewService(t *testing.T) *storage.Service {
	t.Helper()
	return storage.NewStorageService(NewDB(t), nil)
}

// Fixture is a seller with one gig and a buyer.
type Fixture struct {
	Buyer  *models.User
	Seller *models.User
	Gig    *models.Gig
}

// Seed creates a buyer, a seller and a gig offered by the seller.
func Seed(t *testing.T, s storage.Storage) Fixture {
	t.Helper()
	ctx := context.Background()

	buyer := &models.User{Name: "Buyer", Email: fmt.Sprintf("buyer%d@example.com", dbSeq.Add(1))}
	seller := &models.User{Name: "Seller", Email: fmt.Sprintf("seller%d@example.com", dbSeq.Add(1))}
	for _, u := range []*models.User{buyer, seller} {
		if err := s.SaveUser(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	gig := &models.Gig{SellerID: seller.ID, Title: "Landing page", Price: 500000, DeliveryDays: 3}
	if err := s.SaveGig(ctx, gig); err != nil {
		t.Fatalf("seed gig: %v", err)
	}

	return Fixture{Buyer: buyer, Seller: seller, Gig: gig}
}
