package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/utils"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/go-redis/redis/v8"
)

// RedisCache реализация CachePort на Redis.
// Хранит курсоры синхронизации и блокировки прогонов по мерчанту
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache создает новый кэш на Redis и проверяет соединение
func NewRedisCache(ctx context.Context, host string, port int, password string, db int) (interfaces.CachePort, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient оборачивает готовый клиент (используется в тестах)
func NewRedisCacheFromClient(client *redis.Client) interfaces.CachePort {
	return &RedisCache{client: client}
}

// buildKey добавляет к ключу префикс мерчанта для изоляции данных
func (r *RedisCache) buildKey(key, merchantID string) string {
	if merchantID != "" {
		return fmt.Sprintf("merchant:%s:%s", merchantID, key)
	}
	return key
}

// Get получает значение по ключу
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, utils.ErrCacheMiss
		}
		return nil, err
	}
	return val, nil
}

// GetWithMerchant получает значение по ключу с учетом ID мерчанта
func (r *RedisCache) GetWithMerchant(ctx context.Context, key string, merchantID string) ([]byte, error) {
	return r.Get(ctx, r.buildKey(key, merchantID))
}

// Set сохраняет значение с указанным сроком действия
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// SetWithMerchant сохраняет значение с учетом ID мерчанта
func (r *RedisCache) SetWithMerchant(ctx context.Context, key string, value []byte, merchantID string, expiration time.Duration) error {
	return r.Set(ctx, r.buildKey(key, merchantID), value, expiration)
}

// Delete удаляет значение по ключу
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// DeleteWithMerchant удаляет значение по ключу с учетом ID мерчанта
func (r *RedisCache) DeleteWithMerchant(ctx context.Context, key string, merchantID string) error {
	return r.Delete(ctx, r.buildKey(key, merchantID))
}

// Lock пытается получить блокировку через SET NX.
// Срок действия страхует от вечной блокировки при падении владельца
func (r *RedisCache) Lock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	return r.client.SetNX(ctx, "lock:"+key, []byte("1"), expiration).Result()
}

// LockWithMerchant пытается получить блокировку с учетом ID мерчанта
func (r *RedisCache) LockWithMerchant(ctx context.Context, key string, merchantID string, expiration time.Duration) (bool, error) {
	return r.Lock(ctx, r.buildKey(key, merchantID), expiration)
}

// Unlock освобождает блокировку
func (r *RedisCache) Unlock(ctx context.Context, key string) error {
	return r.client.Del(ctx, "lock:"+key).Err()
}

// UnlockWithMerchant освобождает блокировку с учетом ID мерчанта
func (r *RedisCache) UnlockWithMerchant(ctx context.Context, key string, merchantID string) error {
	return r.Unlock(ctx, r.buildKey(key, merchantID))
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}
