package models

import "time"

// ResolutionStrategy определяет политику мерчанта при конфликте данных
type ResolutionStrategy string

const (
	// StrategyPrioritizeAdManager: локальное переопределение побеждает молча
	StrategyPrioritizeAdManager ResolutionStrategy = "prioritize_ad_manager"
	// StrategyPrioritizeCorePlatform: значение ядровой платформы затирает переопределение
	StrategyPrioritizeCorePlatform ResolutionStrategy = "prioritize_core_platform"
	// StrategyManualReview: конфликт помечается и ждет явного разрешения
	StrategyManualReview ResolutionStrategy = "manual_review_notification"
)

// Valid сообщает, известна ли стратегия
func (s ResolutionStrategy) Valid() bool {
	switch s {
	case StrategyPrioritizeAdManager, StrategyPrioritizeCorePlatform, StrategyManualReview:
		return true
	}
	return false
}

// ResolutionDirective определяет явное решение по помеченному конфликту
type ResolutionDirective string

const (
	DirectiveUseCoreValue      ResolutionDirective = "use_core_value"
	DirectiveUseAdManagerValue ResolutionDirective = "use_ad_manager_value"
)

// Valid сообщает, известна ли директива
func (d ResolutionDirective) Valid() bool {
	return d == DirectiveUseCoreValue || d == DirectiveUseAdManagerValue
}

// ResolutionStatus определяет состояние конфликта
type ResolutionStatus string

const (
	ResolutionStatusResolved      ResolutionStatus = "resolved"
	ResolutionStatusPendingReview ResolutionStatus = "pending_review"
)

// SyncCursor отмечает, до какого момента дошла инкрементальная
// синхронизация мерчанта. Читается перед прогоном и записывается
// после полностью успешного прогона
type SyncCursor struct {
	MerchantID        string    `json:"merchant_id"`
	LastSyncTimestamp time.Time `json:"last_sync_timestamp"`
}

// SyncStatus определяет итоговый статус прогона синхронизации
type SyncStatus string

const (
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusPartial   SyncStatus = "partial"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncSummary представляет итог одного прогона синхронизации
type SyncSummary struct {
	Status            SyncStatus `json:"status"`
	ProductsSynced    int        `json:"products_synced"`
	ConflictsDetected int        `json:"conflicts_detected"`
}

// SyncMode определяет режим выборки товаров
type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// SyncRunRecord представляет запись в истории прогонов синхронизации
type SyncRunRecord struct {
	ID                string     `json:"id"`
	MerchantID        string     `json:"merchant_id"`
	Mode              SyncMode   `json:"mode"`
	Status            SyncStatus `json:"status"`
	ProductsSynced    int        `json:"products_synced"`
	ConflictsDetected int        `json:"conflicts_detected"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        time.Time  `json:"finished_at"`
}

// MerchantSettings представляет настройки синхронизации мерчанта
type MerchantSettings struct {
	MerchantID         string             `json:"merchant_id"`
	ResolutionStrategy ResolutionStrategy `json:"resolution_strategy"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// ---------------------------- KAFKA MODELS ----------------------------

// ProductUpdateEvent представляет событие "товар обновлен ядровой платформой".
// Потребители каталога применяют его напрямую. Пустой список UpdatedFields
// означает полный снимок товара, непустой содержит только затронутые поля
type ProductUpdateEvent struct {
	MerchantID    string      `json:"merchant_id"`
	Product       CoreProduct `json:"product"`
	UpdatedFields []string    `json:"updated_fields,omitempty"`
	Source        string      `json:"source"` // "sync" или "conflict_resolution"
	OccurredAt    time.Time   `json:"occurred_at"`
}

// ConflictFlaggedEvent представляет уведомление о конфликте,
// требующем ручного разрешения
type ConflictFlaggedEvent struct {
	Conflict   ConflictRecord `json:"conflict"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ConflictResolvedEvent представляет итог явного разрешения конфликта
type ConflictResolvedEvent struct {
	ConflictID   string              `json:"conflict_id"`
	MerchantID   string              `json:"merchant_id"`
	ProductID    string              `json:"product_id"`
	Field        string              `json:"field"`
	Directive    ResolutionDirective `json:"directive"`
	AppliedValue string              `json:"applied_value"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

// SyncRequestedEvent представляет запрос на асинхронный прогон синхронизации,
// потребляемый воркером
type SyncRequestedEvent struct {
	MerchantID    string    `json:"merchant_id"`
	ForceFullSync bool      `json:"force_full_sync"`
	RequestedAt   time.Time `json:"requested_at"`
}
