package interfaces

import (
	"context"
	"time"
)

// CachePort определяет интерфейс для работы с системой кэширования
// Реализация может использовать Redis, Memcached или любую другую систему кэширования.
// В интеграционном сервисе через этот порт хранятся курсоры синхронизации
// и распределенные блокировки на прогон синхронизации по мерчанту.
type CachePort interface {
	// Get получает значение из кэша по ключу
	// Возвращает ErrCacheMiss, если значение не найдено
	Get(ctx context.Context, key string) ([]byte, error)

	// GetWithMerchant получает значение из кэша по ключу с учетом ID мерчанта
	// Помогает обеспечить изоляцию данных между мерчантами
	GetWithMerchant(ctx context.Context, key string, merchantID string) ([]byte, error)

	// Set сохраняет значение в кэше с указанным сроком действия
	// Если expiration равно 0, срок действия не устанавливается
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// SetWithMerchant сохраняет значение в кэше с учетом ID мерчанта
	SetWithMerchant(ctx context.Context, key string, value []byte, merchantID string, expiration time.Duration) error

	// Delete удаляет значение из кэша по ключу
	Delete(ctx context.Context, key string) error

	// DeleteWithMerchant удаляет значение из кэша по ключу с учетом ID мерчанта
	DeleteWithMerchant(ctx context.Context, key string, merchantID string) error

	// Lock пытается получить блокировку с указанным ключом
	// Возвращает true, если блокировка получена успешно
	// Используется для сериализации прогонов синхронизации по мерчанту
	Lock(ctx context.Context, key string, expiration time.Duration) (bool, error)

	// LockWithMerchant пытается получить блокировку с учетом ID мерчанта
	LockWithMerchant(ctx context.Context, key string, merchantID string, expiration time.Duration) (bool, error)

	// Unlock освобождает блокировку
	Unlock(ctx context.Context, key string) error

	// UnlockWithMerchant освобождает блокировку с учетом ID мерчанта
	UnlockWithMerchant(ctx context.Context, key string, merchantID string) error

	// Close закрывает соединение с системой кэширования
	Close() error
}
