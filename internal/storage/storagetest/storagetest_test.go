package storagetest_test

import (
	"context"
	"sync"
	"testing"

	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/storage"
	"gigmarket/backend/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_UsesSeveralConnections(t *testing.T) {
	db := storagetest.NewDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, storagetest.MaxOpenConns, sqlDB.Stats().MaxOpenConnections)
	assert.Greater(t, sqlDB.Stats().MaxOpenConnections, 1)
}

func TestNewDB_ConcurrentStatusUpdatesHaveOneWinner(t *testing.T) {
	s := storagetest.NewService(t)
	f := storagetest.Seed(t, s)
	ctx := context.Background()

	order := &models.Order{GigID: f.Gig.ID, BuyerID: f.Buyer.ID, SellerID: f.Seller.ID}
	require.NoError(t, s.CreateOrder(ctx, order, "Hi"))

	const racers = storagetest.MaxOpenConns
	results := make(chan error, racers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.UpdateOrderStatus(ctx, order.ID, models.StatusPending, models.StatusAccepted)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	won := 0
	for err := range results {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, storage.ErrStaleStatus)
	}
	assert.Equal(t, 1, won)
}
