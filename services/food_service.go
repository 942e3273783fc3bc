package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"nutritrack/apperr"
	"nutritrack/logger"
	"nutritrack/models"
)

// FoodCache is a read-through cache for catalog profiles.
type FoodCache interface {
	Get(ctx context.Context, name string) (*models.FoodReference, bool)
	Set(ctx context.Context, food *models.FoodReference)
}

// FoodService serves the read-only per-100g catalog.
type FoodService struct {
	db    *gorm.DB
	cache FoodCache
	log   *logger.Logger
}

// NewFoodService builds the catalog reader; cache may be nil.
func NewFoodService(db *gorm.DB, cache FoodCache, log *logger.Logger) *FoodService {
	return &FoodService{db: db, cache: cache, log: log.With("service", "FoodService")}
}

// GetFoodByName looks up a profile by canonical name. A missing profile is
// a not_found error.
func (s *FoodService) GetFoodByName(ctx context.Context, name string) (*models.FoodReference, error) {
	const op = "foods.get"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.CodeValidation, op, "name required")
	}
	if s.cache != nil {
		if f, ok := s.cache.Get(ctx, name); ok {
			return f, nil
		}
	}
	var food models.FoodReference
	err := s.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(name)).First(&food).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, op, fmt.Sprintf("no nutrition profile for %q", name))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, op, err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, &food)
	}
	return &food, nil
}

// Search matches catalog names case-insensitively.
func (s *FoodService) Search(ctx context.Context, query string, limit int) ([]models.FoodReference, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var out []models.FoodReference
	err := s.db.WithContext(ctx).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(query))+"%").
		Order("name ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "foods.search", err)
	}
	return out, nil
}

// RedisFoodCache keeps catalog rows in redis as JSON for a fixed TTL.
type RedisFoodCache struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewRedisFoodCache connects and pings; callers fall back to no cache on
// error.
func NewRedisFoodCache(ctx context.Context, addr string, ttl time.Duration, log *logger.Logger) (*RedisFoodCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("missing REDIS_ADDR")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 5 * time.Second})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisFoodCache{rdb: rdb, ttl: ttl, log: log.With("service", "RedisFoodCache")}, nil
}

func foodCacheKey(name string) string {
	return "food:" + strings.ToLower(name)
}

func (c *RedisFoodCache) Get(ctx context.Context, name string) (*models.FoodReference, bool) {
	raw, err := c.rdb.Get(ctx, foodCacheKey(name)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Debug("food cache get failed", "name", name, "error", err)
		}
		return nil, false
	}
	var f models.FoodReference
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false
	}
	return &f, true
}

func (c *RedisFoodCache) Set(ctx context.Context, food *models.FoodReference) {
	raw, err := json.Marshal(cachedFood{ID: food.ID, Name: food.Name, Category: food.Category, Nutrients: food.Nutrients})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, foodCacheKey(food.Name), raw, c.ttl).Err(); err != nil {
		c.log.Debug("food cache set failed", "name", food.Name, "error", err)
	}
}

func (c *RedisFoodCache) Close() error { return c.rdb.Close() }

// cachedFood mirrors FoodReference's JSON so the round trip keeps the id.
type cachedFood struct {
	ID        uint             `json:"id"`
	Name      string           `json:"name"`
	Category  string           `json:"category,omitempty"`
	Nutrients models.Nutrients `json:"per_100g"`
}
