package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/usecase"
)

const categoryCacheTTL = 600 // seconds

// CachedCategoryRepository fronts a CategoryRepository with memcached.
// Reads that run inside a transaction bypass the cache.
type CachedCategoryRepository struct {
	inner usecase.CategoryRepository
	mc    *memcache.Client
}

func NewCachedCategoryRepository(inner usecase.CategoryRepository, mc *memcache.Client) *CachedCategoryRepository {
	return &CachedCategoryRepository{inner: inner, mc: mc}
}

func categoryIDKey(id int64) string {
	return fmt.Sprintf("category:id:%d", id)
}

// names may hold spaces and non-ascii runes, memcached keys may not
func categoryNameKey(name string) string {
	return fmt.Sprintf("category:name:%016x", xxh3.HashString(name))
}

func categoryListKey(activeOnly bool) string {
	if activeOnly {
		return "category:list:active"
	}
	return "category:list:all"
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txCtxKey{}) != nil
}

func (r *CachedCategoryRepository) load(key string, dest any) bool {
	item, err := r.mc.Get(key)
	if err != nil {
		if err != memcache.ErrCacheMiss {
			slog.Warn(
				"memcached get failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
				slog.String("module", "category_cache"),
			)
		}
		return false
	}
	return json.Unmarshal(item.Value, dest) == nil
}

func (r *CachedCategoryRepository) store(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	err = r.mc.Set(&memcache.Item{Key: key, Value: data, Expiration: categoryCacheTTL})
	if err != nil {
		slog.Warn(
			"memcached set failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
			slog.String("module", "category_cache"),
		)
	}
}

func (r *CachedCategoryRepository) invalidate(keys ...string) {
	for _, key := range keys {
		err := r.mc.Delete(key)
		if err != nil && err != memcache.ErrCacheMiss {
			slog.Warn(
				"memcached delete failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
				slog.String("module", "category_cache"),
			)
		}
	}
}

func (r *CachedCategoryRepository) Create(ctx context.Context, category domain.Category) (domain.Category, error) {
	created, err := r.inner.Create(ctx, category)
	if err != nil {
		return created, err
	}
	r.invalidate(categoryNameKey(created.Name), categoryListKey(true), categoryListKey(false))
	return created, nil
}

func (r *CachedCategoryRepository) Get(ctx context.Context, id int64) (domain.Category, error) {
	if inTx(ctx) {
		return r.inner.Get(ctx, id)
	}
	var cached domain.Category
	if r.load(categoryIDKey(id), &cached) {
		return cached, nil
	}
	category, err := r.inner.Get(ctx, id)
	if err != nil {
		return category, err
	}
	r.store(categoryIDKey(id), category)
	return category, nil
}

func (r *CachedCategoryRepository) GetByName(ctx context.Context, name string) (domain.Category, error) {
	if inTx(ctx) {
		return r.inner.GetByName(ctx, name)
	}
	var cached domain.Category
	if r.load(categoryNameKey(name), &cached) && cached.Name == name {
		return cached, nil
	}
	category, err := r.inner.GetByName(ctx, name)
	if err != nil {
		return category, err
	}
	r.store(categoryNameKey(name), category)
	return category, nil
}

func (r *CachedCategoryRepository) Update(ctx context.Context, category domain.Category) (domain.Category, error) {
	previous, lookupErr := r.inner.Get(ctx, category.ID)

	updated, err := r.inner.Update(ctx, category)
	if err != nil {
		return updated, err
	}

	keys := []string{categoryIDKey(updated.ID), categoryNameKey(updated.Name), categoryListKey(true), categoryListKey(false)}
	if lookupErr == nil {
		keys = append(keys, categoryNameKey(previous.Name))
	}
	r.invalidate(keys...)
	return updated, nil
}

func (r *CachedCategoryRepository) Delete(ctx context.Context, id int64) error {
	previous, lookupErr := r.inner.Get(ctx, id)

	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}

	keys := []string{categoryIDKey(id), categoryListKey(true), categoryListKey(false)}
	if lookupErr == nil {
		keys = append(keys, categoryNameKey(previous.Name))
	}
	r.invalidate(keys...)
	return nil
}

func (r *CachedCategoryRepository) List(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	var cached []domain.Category
	if r.load(categoryListKey(activeOnly), &cached) {
		return cached, nil
	}
	categories, err := r.inner.List(ctx, activeOnly)
	if err != nil {
		return categories, err
	}
	r.store(categoryListKey(activeOnly), categories)
	return categories, nil
}

var _ usecase.CategoryRepository = (*CachedCategoryRepository)(nil)
