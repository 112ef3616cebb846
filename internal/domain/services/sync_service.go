package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/internal/adapters/messaging"
	postgres "github.com/athebyme/admanager-platform/integration-service/internal/adapters/storage"
	"github.com/athebyme/admanager-platform/integration-service/internal/domain/models"
	"github.com/athebyme/admanager-platform/integration-service/internal/utils"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	gocache "github.com/patrickmn/go-cache"
)

const (
	// syncCursorKey - ключ курсора синхронизации в кэше, с префиксом мерчанта
	syncCursorKey = "sync:cursor"
	// syncLockKey - ключ блокировки прогона, с префиксом мерчанта
	syncLockKey = "sync:lock"
	// syncLockTTL страхует от вечной блокировки при падении прогона
	syncLockTTL = 10 * time.Minute

	// strategyCacheTTL - срок жизни стратегии мерчанта в локальном кэше
	strategyCacheTTL = 5 * time.Minute
)

// defaultStrategy применяется, когда мерчант не настроил политику конфликтов.
// Ручной разбор безопаснее молчаливой перезаписи в любую сторону
const defaultStrategy = models.StrategyManualReview

// ProductFetcher - выборка товаров ядровой платформы
type ProductFetcher interface {
	FetchProducts(ctx context.Context, updatedSince *time.Time) ([]models.CoreProduct, error)
}

// SyncService - движок синхронизации каталога с ядровой платформой.
// Выполняет полные и инкрементальные прогоны, обнаруживает конфликты
// с локальными переопределениями и применяет политику мерчанта
type SyncService struct {
	fetcher   ProductFetcher
	storage   postgres.IntegrationStorageInterface
	cache     interfaces.CachePort
	messaging interfaces.MessagingPort
	logger    interfaces.LoggerPort

	// локальный кэш стратегий, чтобы не ходить в БД на каждый прогон
	strategies *gocache.Cache
}

// NewSyncService создает новый движок синхронизации
func NewSyncService(
	fetcher ProductFetcher,
	storage postgres.IntegrationStorageInterface,
	cache interfaces.CachePort,
	msg interfaces.MessagingPort,
	logger interfaces.LoggerPort,
) *SyncService {
	return &SyncService{
		fetcher:    fetcher,
		storage:    storage,
		cache:      cache,
		messaging:  msg,
		logger:     logger,
		strategies: gocache.New(strategyCacheTTL, 2*strategyCacheTTL),
	}
}

// Synchronize выполняет один прогон синхронизации каталога мерчанта.
// forceFull игнорирует сохраненный курсор и выполняет полную выборку.
//
// Курсор продвигается только после полностью успешного прогона:
// частичный прогон возвращает сводку со статусом partial, и следующий
// прогон повторит тот же интервал.
// Параллельные прогоны одного мерчанта отклоняются с ErrSyncInProgress
func (s *SyncService) Synchronize(ctx context.Context, merchantID string, forceFull bool) (*models.SyncSummary, error) {
	if merchantID == "" {
		return nil, utils.ErrInvalidMerchantID
	}

	locked, err := s.cache.LockWithMerchant(ctx, syncLockKey, merchantID, syncLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, utils.ErrSyncInProgress
	}
	defer func() {
		if err := s.cache.UnlockWithMerchant(ctx, syncLockKey, merchantID); err != nil {
			s.logger.WarnWithContext(ctx, "Не удалось снять блокировку синхронизации",
				interfaces.LogField{Key: "merchant_id", Value: merchantID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}()

	startedAt := time.Now().UTC()

	cursor := s.loadCursor(ctx, merchantID, forceFull)
	mode := models.SyncModeFull
	var updatedSince *time.Time
	if cursor != nil {
		mode = models.SyncModeIncremental
		updatedSince = &cursor.LastSyncTimestamp
	}

	s.logger.InfoWithContext(ctx, "Начат прогон синхронизации",
		interfaces.LogField{Key: "merchant_id", Value: merchantID},
		interfaces.LogField{Key: "mode", Value: string(mode)},
	)

	products, err := s.fetcher.FetchProducts(ctx, updatedSince)
	if err != nil {
		s.recordRun(ctx, merchantID, mode, models.SyncStatusFailed, 0, 0, err.Error(), startedAt)
		return nil, err
	}

	strategy := s.resolveStrategy(ctx, merchantID)

	summary := &models.SyncSummary{Status: models.SyncStatusCompleted}
	var runErr error
	for i := range products {
		conflicts, err := s.syncProduct(ctx, merchantID, strategy, &products[i])
		if err != nil {
			// прогон прерывается на первой необработанной ошибке,
			// курсор остается на месте и интервал будет повторен
			s.logger.ErrorWithContext(ctx, "Ошибка обработки товара, прогон прерван",
				interfaces.LogField{Key: "merchant_id", Value: merchantID},
				interfaces.LogField{Key: "product_id", Value: products[i].ID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			summary.Status = models.SyncStatusPartial
			runErr = err
			break
		}
		summary.ProductsSynced++
		summary.ConflictsDetected += conflicts
	}

	if summary.Status == models.SyncStatusCompleted {
		s.advanceCursor(ctx, merchantID, startedAt)
	}

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	s.recordRun(ctx, merchantID, mode, summary.Status,
		summary.ProductsSynced, summary.ConflictsDetected, errMsg, startedAt)

	s.logger.InfoWithContext(ctx, "Прогон синхронизации завершен",
		interfaces.LogField{Key: "merchant_id", Value: merchantID},
		interfaces.LogField{Key: "status", Value: string(summary.Status)},
		interfaces.LogField{Key: "products_synced", Value: summary.ProductsSynced},
		interfaces.LogField{Key: "conflicts_detected", Value: summary.ConflictsDetected},
	)

	return summary, nil
}

// syncProduct обрабатывает один товар прогона: находит конфликты
// с локальными переопределениями и применяет стратегию мерчанта.
// Возвращает число обнаруженных конфликтов
func (s *SyncService) syncProduct(ctx context.Context, merchantID string, strategy models.ResolutionStrategy, product *models.CoreProduct) (int, error) {
	override, err := s.storage.GetOverrideMetadata(ctx, merchantID, product.ID)
	if err != nil {
		return 0, err
	}

	if override == nil {
		// переопределений нет, значение платформы принимается как есть
		if err := s.publishCoreUpdate(ctx, merchantID, product, "sync"); err != nil {
			return 0, err
		}
		return 0, nil
	}

	conflicts := s.detectConflicts(merchantID, strategy, product, override)
	if len(conflicts) == 0 {
		if err := s.publishCoreUpdate(ctx, merchantID, product, "sync"); err != nil {
			return 0, err
		}
		return 0, nil
	}

	switch strategy {
	case models.StrategyPrioritizeAdManager:
		// локальное переопределение побеждает молча, обновление не эмитится
		s.logger.DebugWithContext(ctx, "Конфликт подавлен в пользу переопределения",
			interfaces.LogField{Key: "merchant_id", Value: merchantID},
			interfaces.LogField{Key: "product_id", Value: product.ID},
			interfaces.LogField{Key: "conflicts", Value: len(conflicts)},
		)

	case models.StrategyPrioritizeCorePlatform:
		// значение платформы затирает переопределение
		if err := s.publishCoreUpdate(ctx, merchantID, product, "sync"); err != nil {
			return 0, err
		}

	case models.StrategyManualReview:
		// конфликт сохраняется и помечается, обновление придерживается
		// до явного разрешения
		for i := range conflicts {
			if err := s.storage.SaveConflict(ctx, &conflicts[i]); err != nil {
				return 0, err
			}
			if err := s.publishConflictFlagged(ctx, &conflicts[i]); err != nil {
				return 0, err
			}
		}

	default:
		return 0, utils.ErrUnknownStrategy
	}

	return len(conflicts), nil
}

// detectConflicts сравнивает товар платформы с локальным переопределением.
// Конфликт по полю возникает, только если платформа изменила товар позже,
// чем мерчант правил переопределение, и значения расходятся
func (s *SyncService) detectConflicts(merchantID string, strategy models.ResolutionStrategy, product *models.CoreProduct, override *models.OverrideMetadata) []models.ConflictRecord {
	if !product.LastUpdatedAt.After(override.LastModifiedAt) {
		return nil
	}

	var conflicts []models.ConflictRecord
	for field, overrideValue := range override.Fields {
		coreValue, known := product.FieldValue(field)
		if !known || coreValue == overrideValue {
			continue
		}
		conflicts = append(conflicts, models.ConflictRecord{
			MerchantID:         merchantID,
			ProductID:          product.ID,
			ConflictingField:   field,
			CoreValue:          coreValue,
			OverrideValue:      overrideValue,
			ResolutionStrategy: strategy,
			ResolutionStatus:   models.ResolutionStatusPendingReview,
			DetectedAt:         time.Now().UTC(),
		})
	}
	return conflicts
}

// ResolveConflict применяет явную директиву к помеченному конфликту.
// Конфликт ищется по товару и полю среди ожидающих разбора
func (s *SyncService) ResolveConflict(ctx context.Context, merchantID, productID, field string, directive models.ResolutionDirective) (*models.ConflictRecord, error) {
	if merchantID == "" {
		return nil, utils.ErrInvalidMerchantID
	}
	if !directive.Valid() {
		return nil, utils.ErrUnknownDirective
	}

	conflict, err := s.storage.GetPendingConflict(ctx, merchantID, productID, field)
	if err != nil {
		return nil, err
	}
	if conflict == nil {
		return nil, utils.ErrConflictNotFound
	}

	if err := s.storage.MarkConflictResolved(ctx, conflict.ID, directive); err != nil {
		return nil, err
	}
	conflict.ResolutionStatus = models.ResolutionStatusResolved

	appliedValue := conflict.OverrideValue
	if directive == models.DirectiveUseCoreValue {
		appliedValue = conflict.CoreValue
	}

	event := models.ConflictResolvedEvent{
		ConflictID:   conflict.ID,
		MerchantID:   conflict.MerchantID,
		ProductID:    conflict.ProductID,
		Field:        conflict.ConflictingField,
		Directive:    directive,
		AppliedValue: appliedValue,
		OccurredAt:   time.Now().UTC(),
	}
	if err := s.publishEvent(ctx, messaging.ProductConflictResolvedEvent, conflict.ProductID, event); err != nil {
		return nil, err
	}

	if directive == models.DirectiveUseCoreValue {
		// принятое значение платформы доводится до потребителей каталога,
		// которые подписаны только на обновления товаров
		product := models.CoreProduct{ID: conflict.ProductID, LastUpdatedAt: time.Now().UTC()}
		if product.SetFieldValue(conflict.ConflictingField, conflict.CoreValue) {
			update := models.ProductUpdateEvent{
				MerchantID:    conflict.MerchantID,
				Product:       product,
				UpdatedFields: []string{conflict.ConflictingField},
				Source:        "conflict_resolution",
				OccurredAt:    time.Now().UTC(),
			}
			if err := s.publishEvent(ctx, messaging.ProductCoreUpdatedEvent, conflict.ProductID, update); err != nil {
				return nil, err
			}
		}
	}

	s.logger.InfoWithContext(ctx, "Конфликт разрешен",
		interfaces.LogField{Key: "merchant_id", Value: merchantID},
		interfaces.LogField{Key: "conflict_id", Value: conflict.ID},
		interfaces.LogField{Key: "directive", Value: string(directive)},
	)

	return conflict, nil
}

// resolveStrategy возвращает стратегию мерчанта с учетом локального кэша.
// Ошибка чтения настроек не валит прогон, применяется стратегия по умолчанию
func (s *SyncService) resolveStrategy(ctx context.Context, merchantID string) models.ResolutionStrategy {
	if cached, ok := s.strategies.Get(merchantID); ok {
		return cached.(models.ResolutionStrategy)
	}

	strategy := defaultStrategy
	settings, err := s.storage.GetMerchantSettings(ctx, merchantID)
	if err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось прочитать настройки мерчанта",
			interfaces.LogField{Key: "merchant_id", Value: merchantID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	} else if settings != nil && settings.ResolutionStrategy.Valid() {
		strategy = settings.ResolutionStrategy
	}

	s.strategies.Set(merchantID, strategy, gocache.DefaultExpiration)
	return strategy
}

// loadCursor читает курсор синхронизации мерчанта из кэша.
// Отсутствие или порча курсора означает полный прогон
func (s *SyncService) loadCursor(ctx context.Context, merchantID string, forceFull bool) *models.SyncCursor {
	if forceFull {
		return nil
	}

	raw, err := s.cache.GetWithMerchant(ctx, syncCursorKey, merchantID)
	if err != nil {
		if !errors.Is(err, utils.ErrCacheMiss) {
			s.logger.WarnWithContext(ctx, "Не удалось прочитать курсор синхронизации",
				interfaces.LogField{Key: "merchant_id", Value: merchantID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
		return nil
	}

	var cursor models.SyncCursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		s.logger.WarnWithContext(ctx, "Курсор синхронизации поврежден, будет полный прогон",
			interfaces.LogField{Key: "merchant_id", Value: merchantID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return nil
	}

	return &cursor
}

// advanceCursor фиксирует момент начала успешного прогона как новый курсор.
// Берется время начала, а не конца: изменения, пришедшие во время прогона,
// попадут в следующий интервал
func (s *SyncService) advanceCursor(ctx context.Context, merchantID string, startedAt time.Time) {
	cursor := models.SyncCursor{MerchantID: merchantID, LastSyncTimestamp: startedAt}
	raw, err := json.Marshal(cursor)
	if err == nil {
		err = s.cache.SetWithMerchant(ctx, syncCursorKey, raw, merchantID, 0)
	}
	if err != nil {
		s.logger.ErrorWithContext(ctx, "Не удалось сохранить курсор синхронизации",
			interfaces.LogField{Key: "merchant_id", Value: merchantID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

// recordRun сохраняет запись о прогоне в истории. Ошибка записи истории
// не влияет на итог прогона
func (s *SyncService) recordRun(ctx context.Context, merchantID string, mode models.SyncMode, status models.SyncStatus, synced, conflicts int, errMsg string, startedAt time.Time) {
	run := &models.SyncRunRecord{
		MerchantID:        merchantID,
		Mode:              mode,
		Status:            status,
		ProductsSynced:    synced,
		ConflictsDetected: conflicts,
		ErrorMessage:      errMsg,
		StartedAt:         startedAt,
		FinishedAt:        time.Now().UTC(),
	}
	if err := s.storage.SaveSyncRun(ctx, run); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось сохранить запись о прогоне",
			interfaces.LogField{Key: "merchant_id", Value: merchantID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

// publishCoreUpdate эмитит событие принятия значения ядровой платформы
func (s *SyncService) publishCoreUpdate(ctx context.Context, merchantID string, product *models.CoreProduct, source string) error {
	event := models.ProductUpdateEvent{
		MerchantID: merchantID,
		Product:    *product,
		Source:     source,
		OccurredAt: time.Now().UTC(),
	}
	return s.publishEvent(ctx, messaging.ProductCoreUpdatedEvent, product.ID, event)
}

// publishConflictFlagged эмитит уведомление о конфликте для ручного разбора
func (s *SyncService) publishConflictFlagged(ctx context.Context, conflict *models.ConflictRecord) error {
	event := models.ConflictFlaggedEvent{
		Conflict:   *conflict,
		OccurredAt: time.Now().UTC(),
	}
	return s.publishEvent(ctx, messaging.ProductConflictFlaggedEvent, conflict.ProductID, event)
}

// publishEvent сериализует событие и публикует его с ключом партиционирования.
// Ключ по товару сохраняет порядок событий одного товара
func (s *SyncService) publishEvent(ctx context.Context, topic, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.messaging.PublishWithKey(ctx, topic, key, payload)
}
