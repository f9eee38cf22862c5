package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"go.uber.org/zap"
)

type cachedProductRepo struct {
	next        ProductRepository
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewCachedProductRepository serves FindByID from Redis and drops the cached entry
// on every write to the product.
func NewCachedProductRepository(next ProductRepository, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) ProductRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &cachedProductRepo{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    ttl,
		logger:      logger,
	}
}

func productKey(id uuid.UUID) string {
	return "product:" + id.String()
}

func (r *cachedProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	key := productKey(id)

	val, err := r.redisClient.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var product domain.Product
		if err := json.Unmarshal(val, &product); err == nil {
			return &product, nil
		}
		mylogger.Warn(ctx, r.logger, "Dropping unreadable cached product", zap.String("key", key))
		r.invalidate(ctx, id)
	case !errors.Is(err, redis.Nil):
		mylogger.Warn(ctx, r.logger, "Product cache read failed", zap.String("key", key), zap.Error(err))
	}

	product, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := r.redisClient.Set(ctx, key, data, r.cacheTTL).Err(); err != nil {
			mylogger.Warn(ctx, r.logger, "Product cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return product, nil
}

func (r *cachedProductRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	return r.next.FindByIDs(ctx, ids)
}

func (r *cachedProductRepo) List(ctx context.Context, category string) ([]domain.Product, error) {
	return r.next.List(ctx, category)
}

func (r *cachedProductRepo) Create(ctx context.Context, product *domain.Product) error {
	return r.next.Create(ctx, product)
}

func (r *cachedProductRepo) Update(ctx context.Context, product *domain.Product) error {
	if err := r.next.Update(ctx, product); err != nil {
		return err
	}

	r.invalidate(ctx, product.ID)
	return nil
}

func (r *cachedProductRepo) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	if err := r.next.UpdateStock(ctx, id, stock); err != nil {
		return err
	}

	r.invalidate(ctx, id)
	return nil
}

func (r *cachedProductRepo) ReserveStock(ctx context.Context, reservations []domain.StockReservation) error {
	if err := r.next.ReserveStock(ctx, reservations); err != nil {
		return err
	}

	r.invalidateReservations(ctx, reservations)
	return nil
}

func (r *cachedProductRepo) ReleaseStock(ctx context.Context, reservations []domain.StockReservation) error {
	if err := r.next.ReleaseStock(ctx, reservations); err != nil {
		return err
	}

	r.invalidateReservations(ctx, reservations)
	return nil
}

func (r *cachedProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}

	r.invalidate(ctx, id)
	return nil
}

func (r *cachedProductRepo) invalidateReservations(ctx context.Context, reservations []domain.StockReservation) {
	for _, reservation := range reservations {
		r.invalidate(ctx, reservation.ProductID)
	}
}

func (r *cachedProductRepo) invalidate(ctx context.Context, id uuid.UUID) {
	if err := r.redisClient.Del(ctx, productKey(id)).Err(); err != nil {
		mylogger.Warn(ctx, r.logger, "Product cache invalidation failed", zap.String("product_id", id.String()), zap.Error(err))
	}
}
