package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/domain/models"
	"github.com/athebyme/admanager-platform/integration-service/internal/utils"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/athebyme/admanager-platform/integration-service/pkg/tx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntegrationStorageInterface определяет интерфейс взаимодействия с хранилищем PostgreSQL.
// Хранилище - внешний коллаборатор движка синхронизации: метаданные переопределений,
// настройки мерчантов, помеченные конфликты и история прогонов
type IntegrationStorageInterface interface {
	// Override методы
	GetOverrideMetadata(ctx context.Context, merchantID, productID string) (*models.OverrideMetadata, error)

	// MerchantSettings методы
	GetMerchantSettings(ctx context.Context, merchantID string) (*models.MerchantSettings, error)

	// Conflict методы
	SaveConflict(ctx context.Context, conflict *models.ConflictRecord) error
	GetPendingConflict(ctx context.Context, merchantID, productID, field string) (*models.ConflictRecord, error)
	MarkConflictResolved(ctx context.Context, conflictID string, directive models.ResolutionDirective) error

	// SyncRun методы
	SaveSyncRun(ctx context.Context, run *models.SyncRunRecord) error
}

// IntegrationStoragePort объединяет доменные методы с жизненным циклом хранилища
type IntegrationStoragePort interface {
	IntegrationStorageInterface
	interfaces.StoragePort
}

// querier абстрагирует пул и транзакцию
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IntegrationStorage реализация IntegrationStoragePort для PostgreSQL
type IntegrationStorage struct {
	pool      *pgxpool.Pool
	txManager tx.TxManager
}

// NewPostgresStorage создает новый экземпляр IntegrationStorage
func NewPostgresStorage(ctx context.Context, connectionString string, logger interfaces.LoggerPort) (*IntegrationStorage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &IntegrationStorage{
		pool:      pool,
		txManager: tx.NewTxManager(pool, logger),
	}, nil
}

// q возвращает транзакцию из контекста, если она есть, иначе пул
func (s *IntegrationStorage) q(ctx context.Context) querier {
	if txn, ok := tx.GetTxFromContext(ctx); ok {
		return txn
	}
	return s.pool
}

// GetOverrideMetadata возвращает метаданные переопределений товара.
// Возвращает nil, nil если переопределений нет
func (s *IntegrationStorage) GetOverrideMetadata(ctx context.Context, merchantID, productID string) (*models.OverrideMetadata, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT field, value, last_modified_at
		FROM product_overrides
		WHERE merchant_id = $1 AND product_id = $2`,
		merchantID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query product overrides: %w", err)
	}
	defer rows.Close()

	meta := &models.OverrideMetadata{
		MerchantID: merchantID,
		ProductID:  productID,
		Fields:     make(map[string]string),
	}

	for rows.Next() {
		var field, value string
		var modifiedAt time.Time
		if err := rows.Scan(&field, &value, &modifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override row: %w", err)
		}
		meta.Fields[field] = value
		if modifiedAt.After(meta.LastModifiedAt) {
			meta.LastModifiedAt = modifiedAt
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read override rows: %w", err)
	}

	if len(meta.Fields) == 0 {
		return nil, nil // переопределений нет
	}

	return meta, nil
}

// GetMerchantSettings возвращает настройки синхронизации мерчанта.
// Возвращает nil, nil если настройки не заданы
func (s *IntegrationStorage) GetMerchantSettings(ctx context.Context, merchantID string) (*models.MerchantSettings, error) {
	var settings models.MerchantSettings
	err := s.q(ctx).QueryRow(ctx, `
		SELECT merchant_id, resolution_strategy, updated_at
		FROM merchant_sync_settings
		WHERE merchant_id = $1`,
		merchantID).Scan(&settings.MerchantID, &settings.ResolutionStrategy, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get merchant settings: %w", err)
	}

	return &settings, nil
}

// SaveConflict сохраняет запись о конфликте.
// Повторное обнаружение того же конфликта обновляет существующую запись
func (s *IntegrationStorage) SaveConflict(ctx context.Context, conflict *models.ConflictRecord) error {
	if conflict.ID == "" {
		conflict.ID = uuid.New().String()
	}

	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO product_conflicts
			(id, merchant_id, product_id, conflicting_field, core_value, override_value,
			 resolution_strategy, resolution_status, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (merchant_id, product_id, conflicting_field)
			WHERE resolution_status = 'pending_review'
		DO UPDATE SET
			core_value = EXCLUDED.core_value,
			override_value = EXCLUDED.override_value,
			detected_at = EXCLUDED.detected_at`,
		conflict.ID, conflict.MerchantID, conflict.ProductID, conflict.ConflictingField,
		conflict.CoreValue, conflict.OverrideValue, conflict.ResolutionStrategy,
		conflict.ResolutionStatus, conflict.DetectedAt)
	if err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}

	return nil
}

// GetPendingConflict возвращает помеченный конфликт по товару и полю.
// Возвращает nil, nil если такого конфликта нет
func (s *IntegrationStorage) GetPendingConflict(ctx context.Context, merchantID, productID, field string) (*models.ConflictRecord, error) {
	var c models.ConflictRecord
	err := s.q(ctx).QueryRow(ctx, `
		SELECT id, merchant_id, product_id, conflicting_field, core_value, override_value,
		       resolution_strategy, resolution_status, detected_at
		FROM product_conflicts
		WHERE merchant_id = $1 AND product_id = $2 AND conflicting_field = $3
		  AND resolution_status = 'pending_review'`,
		merchantID, productID, field).Scan(
		&c.ID, &c.MerchantID, &c.ProductID, &c.ConflictingField, &c.CoreValue,
		&c.OverrideValue, &c.ResolutionStrategy, &c.ResolutionStatus, &c.DetectedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending conflict: %w", err)
	}

	return &c, nil
}

// MarkConflictResolved переводит конфликт в состояние resolved и пишет
// запись в историю разрешений. Обе операции выполняются в одной транзакции
func (s *IntegrationStorage) MarkConflictResolved(ctx context.Context, conflictID string, directive models.ResolutionDirective) error {
	return s.txManager.Do(ctx, func(txCtx context.Context) error {
		tag, err := s.q(txCtx).Exec(txCtx, `
			UPDATE product_conflicts
			SET resolution_status = $2
			WHERE id = $1 AND resolution_status = 'pending_review'`,
			conflictID, models.ResolutionStatusResolved)
		if err != nil {
			return fmt.Errorf("failed to update conflict status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return utils.ErrConflictNotFound
		}

		_, err = s.q(txCtx).Exec(txCtx, `
			INSERT INTO conflict_resolutions (id, conflict_id, directive, resolved_at)
			VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), conflictID, directive, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to save resolution record: %w", err)
		}

		return nil
	})
}

// SaveSyncRun сохраняет запись в истории прогонов синхронизации
func (s *IntegrationStorage) SaveSyncRun(ctx context.Context, run *models.SyncRunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.q(ctx).Exec(ctx, `
		INSERT INTO sync_runs
			(id, merchant_id, mode, status, products_synced, conflicts_detected,
			 error_message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.MerchantID, run.Mode, run.Status, run.ProductsSynced,
		run.ConflictsDetected, run.ErrorMessage, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to save sync run: %w", err)
	}

	return nil
}

// Ping проверяет доступность хранилища
func (s *IntegrationStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close закрывает пул соединений
func (s *IntegrationStorage) Close() error {
	s.pool.Close()
	return nil
}
