package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/athebyme/admanager-platform/integration-service/internal/adapters/cache"
	"github.com/athebyme/admanager-platform/integration-service/internal/adapters/messaging"
	"github.com/athebyme/admanager-platform/integration-service/internal/domain/models"
	"github.com/athebyme/admanager-platform/integration-service/internal/utils"
	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher - управляемая выборка товаров
type fakeFetcher struct {
	products     []models.CoreProduct
	err          error
	updatedSince *time.Time
	called       bool
}

func (f *fakeFetcher) FetchProducts(ctx context.Context, updatedSince *time.Time) ([]models.CoreProduct, error) {
	f.called = true
	f.updatedSince = updatedSince
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

// fakeStorage - хранилище в памяти
type fakeStorage struct {
	overrides   map[string]*models.OverrideMetadata // ключ product_id
	overrideErr map[string]error                    // ошибка чтения по product_id
	settings    *models.MerchantSettings
	conflicts   []*models.ConflictRecord
	pending     map[string]*models.ConflictRecord // ключ product_id+field
	resolved    map[string]models.ResolutionDirective
	runs        []*models.SyncRunRecord
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		overrides:   make(map[string]*models.OverrideMetadata),
		overrideErr: make(map[string]error),
		pending:     make(map[string]*models.ConflictRecord),
		resolved:    make(map[string]models.ResolutionDirective),
	}
}

func (s *fakeStorage) GetOverrideMetadata(ctx context.Context, merchantID, productID string) (*models.OverrideMetadata, error) {
	if err := s.overrideErr[productID]; err != nil {
		return nil, err
	}
	return s.overrides[productID], nil
}

func (s *fakeStorage) GetMerchantSettings(ctx context.Context, merchantID string) (*models.MerchantSettings, error) {
	return s.settings, nil
}

func (s *fakeStorage) SaveConflict(ctx context.Context, conflict *models.ConflictRecord) error {
	s.conflicts = append(s.conflicts, conflict)
	return nil
}

func (s *fakeStorage) GetPendingConflict(ctx context.Context, merchantID, productID, field string) (*models.ConflictRecord, error) {
	return s.pending[productID+"/"+field], nil
}

func (s *fakeStorage) MarkConflictResolved(ctx context.Context, conflictID string, directive models.ResolutionDirective) error {
	s.resolved[conflictID] = directive
	return nil
}

func (s *fakeStorage) SaveSyncRun(ctx context.Context, run *models.SyncRunRecord) error {
	s.runs = append(s.runs, run)
	return nil
}

// fakeMessaging собирает опубликованные события по темам
type fakeMessaging struct {
	published map[string][][]byte
}

func newFakeMessaging() *fakeMessaging {
	return &fakeMessaging{published: make(map[string][][]byte)}
}

func (m *fakeMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return m.PublishWithKey(ctx, topic, "", message)
}

func (m *fakeMessaging) PublishWithKey(ctx context.Context, topic string, key string, message []byte) error {
	m.published[topic] = append(m.published[topic], message)
	return nil
}

func (m *fakeMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	return func() error { return nil }, nil
}

func (m *fakeMessaging) Close() error { return nil }

type syncFixture struct {
	service   *SyncService
	fetcher   *fakeFetcher
	storage   *fakeStorage
	messaging *fakeMessaging
	cache     interfaces.CachePort
	redis     *miniredis.Miniredis
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	cacheClient := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	fetcher := &fakeFetcher{}
	storage := newFakeStorage()
	msg := newFakeMessaging()

	return &syncFixture{
		service:   NewSyncService(fetcher, storage, cacheClient, msg, interfaces.NopLogger{}),
		fetcher:   fetcher,
		storage:   storage,
		messaging: msg,
		cache:     cacheClient,
		redis:     mr,
	}
}

func (f *syncFixture) cursor(t *testing.T, merchantID string) *models.SyncCursor {
	t.Helper()

	raw, err := f.cache.GetWithMerchant(context.Background(), "sync:cursor", merchantID)
	if errors.Is(err, utils.ErrCacheMiss) {
		return nil
	}
	require.NoError(t, err)

	var cursor models.SyncCursor
	require.NoError(t, json.Unmarshal(raw, &cursor))
	return &cursor
}

func TestSynchronize_NoOverrides(t *testing.T) {
	f := newSyncFixture(t)
	f.fetcher.products = []models.CoreProduct{
		{ID: "p1", Name: "Widget", Price: 10, LastUpdatedAt: time.Now()},
		{ID: "p2", Name: "Gadget", Price: 20, LastUpdatedAt: time.Now()},
	}

	summary, err := f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.ProductsSynced)
	assert.Equal(t, 0, summary.ConflictsDetected)

	// каждое значение платформы эмитится в каталог
	assert.Len(t, f.messaging.published[messaging.ProductCoreUpdatedEvent], 2)

	// курсор продвинут после полностью успешного прогона
	cursor := f.cursor(t, "m1")
	require.NotNil(t, cursor)
	assert.False(t, cursor.LastSyncTimestamp.IsZero())
}

func TestSynchronize_ManualReviewConflict(t *testing.T) {
	f := newSyncFixture(t)
	overrideTime := time.Now().Add(-time.Hour)
	f.storage.overrides["p1"] = &models.OverrideMetadata{
		MerchantID:     "m1",
		ProductID:      "p1",
		Fields:         map[string]string{"price": "8.50"},
		LastModifiedAt: overrideTime,
	}
	f.fetcher.products = []models.CoreProduct{
		// платформа изменила товар после правки переопределения
		{ID: "p1", Name: "Widget", Price: 10, LastUpdatedAt: overrideTime.Add(time.Minute)},
	}

	summary, err := f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.ConflictsDetected)

	// конфликт сохранен и помечен, обновление каталога придержано
	require.Len(t, f.storage.conflicts, 1)
	conflict := f.storage.conflicts[0]
	assert.Equal(t, "price", conflict.ConflictingField)
	assert.Equal(t, "10", conflict.CoreValue)
	assert.Equal(t, "8.50", conflict.OverrideValue)
	assert.Equal(t, models.ResolutionStatusPendingReview, conflict.ResolutionStatus)

	assert.Len(t, f.messaging.published[messaging.ProductConflictFlaggedEvent], 1)
	assert.Empty(t, f.messaging.published[messaging.ProductCoreUpdatedEvent])
}

func TestSynchronize_PrioritizeAdManager(t *testing.T) {
	f := newSyncFixture(t)
	f.storage.settings = &models.MerchantSettings{
		MerchantID:         "m1",
		ResolutionStrategy: models.StrategyPrioritizeAdManager,
	}
	overrideTime := time.Now().Add(-time.Hour)
	f.storage.overrides["p1"] = &models.OverrideMetadata{
		Fields:         map[string]string{"name": "Local Name"},
		LastModifiedAt: overrideTime,
	}
	f.fetcher.products = []models.CoreProduct{
		{ID: "p1", Name: "Core Name", LastUpdatedAt: overrideTime.Add(time.Minute)},
	}

	summary, err := f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)

	// переопределение побеждает молча: ни событий, ни записей о конфликте
	assert.Equal(t, 1, summary.ConflictsDetected)
	assert.Empty(t, f.messaging.published[messaging.ProductCoreUpdatedEvent])
	assert.Empty(t, f.messaging.published[messaging.ProductConflictFlaggedEvent])
	assert.Empty(t, f.storage.conflicts)
}

func TestSynchronize_PrioritizeCorePlatform(t *testing.T) {
	f := newSyncFixture(t)
	f.storage.settings = &models.MerchantSettings{
		MerchantID:         "m1",
		ResolutionStrategy: models.StrategyPrioritizeCorePlatform,
	}
	overrideTime := time.Now().Add(-time.Hour)
	f.storage.overrides["p1"] = &models.OverrideMetadata{
		Fields:         map[string]string{"name": "Local Name"},
		LastModifiedAt: overrideTime,
	}
	f.fetcher.products = []models.CoreProduct{
		{ID: "p1", Name: "Core Name", LastUpdatedAt: overrideTime.Add(time.Minute)},
	}

	summary, err := f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)

	// значение платформы затирает переопределение
	assert.Equal(t, 1, summary.ConflictsDetected)
	assert.Len(t, f.messaging.published[messaging.ProductCoreUpdatedEvent], 1)
	assert.Empty(t, f.messaging.published[messaging.ProductConflictFlaggedEvent])
}

func TestSynchronize_OverrideNewerThanCore(t *testing.T) {
	f := newSyncFixture(t)
	coreTime := time.Now().Add(-time.Hour)
	f.storage.overrides["p1"] = &models.OverrideMetadata{
		Fields: map[string]string{"price": "8.50"},
		// мерчант правил переопределение позже изменения платформы
		LastModifiedAt: coreTime.Add(time.Minute),
	}
	f.fetcher.products = []models.CoreProduct{
		{ID: "p1", Price: 10, LastUpdatedAt: coreTime},
	}

	summary, err := f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)

	// расхождение значений без более свежего изменения платформы не конфликт
	assert.Equal(t, 0, summary.ConflictsDetected)
	assert.Len(t, f.messaging.published[messaging.ProductCoreUpdatedEvent], 1)
}

func TestSynchronize_EqualValuesNoConflict(t *testing.T) {
	f := newSyncFixture(t)
	overrideTime := time.Now().Add(-time.Hour)
	f.storage.overrides["p1"] = &models.OverrideMetadata{
		Fields:         map[string]string{"price": "10"},
		LastModifiedAt: overrideTime,
	}
	f.fetcher.products = []models.CoreProduct{
		{ID: "p1", Price: 10, LastUpdatedAt: overrideTime.Add(time.Minute)},
	}

	summary, err := f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ConflictsDetected)
}

func TestSynchronize_FetchFailure(t *testing.T) {
	f := newSyncFixture(t)
	f.fetcher.err = errors.New("core platform: unavailable: request timed out")

	summary, err := f.service.Synchronize(context.Background(), "m1", false)
	require.Error(t, err)
	assert.Nil(t, summary)

	// курсор не появился, прогон записан как неуспешный
	assert.Nil(t, f.cursor(t, "m1"))
	require.Len(t, f.storage.runs, 1)
	assert.Equal(t, models.SyncStatusFailed, f.storage.runs[0].Status)
}

func TestSynchronize_PartialRunKeepsCursor(t *testing.T) {
	f := newSyncFixture(t)
	f.fetcher.products = []models.CoreProduct{
		{ID: "p1", Name: "A", LastUpdatedAt: time.Now()},
		{ID: "p2", Name: "B", LastUpdatedAt: time.Now()},
		{ID: "p3", Name: "C", LastUpdatedAt: time.Now()},
	}
	f.storage.overrideErr["p2"] = errors.New("storage gone")

	summary, err := f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)

	// частичный итог: первый товар прошел, прогон прерван на втором
	assert.Equal(t, models.SyncStatusPartial, summary.Status)
	assert.Equal(t, 1, summary.ProductsSynced)

	// курсор остается на месте, интервал будет повторен
	assert.Nil(t, f.cursor(t, "m1"))

	require.Len(t, f.storage.runs, 1)
	assert.Equal(t, models.SyncStatusPartial, f.storage.runs[0].Status)
	assert.NotEmpty(t, f.storage.runs[0].ErrorMessage)
}

func TestSynchronize_IncrementalUsesCursor(t *testing.T) {
	f := newSyncFixture(t)
	f.fetcher.products = []models.CoreProduct{}

	// первый прогон полный
	_, err := f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)
	assert.Nil(t, f.fetcher.updatedSince)

	// второй прогон инкрементальный от сохраненного курсора
	_, err = f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)
	require.NotNil(t, f.fetcher.updatedSince)

	// принудительный полный прогон игнорирует курсор
	_, err = f.service.Synchronize(context.Background(), "m1", true)
	require.NoError(t, err)
	assert.Nil(t, f.fetcher.updatedSince)
}

func TestSynchronize_ConcurrentRunRejected(t *testing.T) {
	f := newSyncFixture(t)

	locked, err := f.cache.LockWithMerchant(context.Background(), "sync:lock", "m1", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = f.service.Synchronize(context.Background(), "m1", false)
	assert.ErrorIs(t, err, utils.ErrSyncInProgress)
	assert.False(t, f.fetcher.called)
}

func TestSynchronize_LockReleasedAfterRun(t *testing.T) {
	f := newSyncFixture(t)
	f.fetcher.products = []models.CoreProduct{}

	_, err := f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)

	// блокировка снята, следующий прогон возможен сразу
	_, err = f.service.Synchronize(context.Background(), "m1", false)
	require.NoError(t, err)
}

func TestSynchronize_EmptyMerchantID(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.service.Synchronize(context.Background(), "", false)
	assert.ErrorIs(t, err, utils.ErrInvalidMerchantID)
}

func TestResolveConflict(t *testing.T) {
	f := newSyncFixture(t)
	f.storage.pending["p1/price"] = &models.ConflictRecord{
		ID:               "c1",
		MerchantID:       "m1",
		ProductID:        "p1",
		ConflictingField: "price",
		CoreValue:        "10",
		OverrideValue:    "8.50",
		ResolutionStatus: models.ResolutionStatusPendingReview,
	}

	conflict, err := f.service.ResolveConflict(context.Background(), "m1", "p1", "price", models.DirectiveUseCoreValue)
	require.NoError(t, err)

	assert.Equal(t, models.ResolutionStatusResolved, conflict.ResolutionStatus)
	assert.Equal(t, models.DirectiveUseCoreValue, f.storage.resolved["c1"])

	events := f.messaging.published[messaging.ProductConflictResolvedEvent]
	require.Len(t, events, 1)

	var event models.ConflictResolvedEvent
	require.NoError(t, json.Unmarshal(events[0], &event))
	assert.Equal(t, "c1", event.ConflictID)
	assert.Equal(t, "10", event.AppliedValue)

	// принятое значение платформы уходит и потребителям обновлений каталога
	updates := f.messaging.published[messaging.ProductCoreUpdatedEvent]
	require.Len(t, updates, 1)

	var update models.ProductUpdateEvent
	require.NoError(t, json.Unmarshal(updates[0], &update))
	assert.Equal(t, "p1", update.Product.ID)
	assert.Equal(t, 10.0, update.Product.Price)
	assert.Equal(t, []string{"price"}, update.UpdatedFields)
	assert.Equal(t, "conflict_resolution", update.Source)
}

func TestResolveConflict_AdManagerDirective(t *testing.T) {
	f := newSyncFixture(t)
	f.storage.pending["p1/price"] = &models.ConflictRecord{
		ID:               "c1",
		MerchantID:       "m1",
		ProductID:        "p1",
		ConflictingField: "price",
		CoreValue:        "10",
		OverrideValue:    "8.50",
	}

	_, err := f.service.ResolveConflict(context.Background(), "m1", "p1", "price", models.DirectiveUseAdManagerValue)
	require.NoError(t, err)

	var event models.ConflictResolvedEvent
	events := f.messaging.published[messaging.ProductConflictResolvedEvent]
	require.Len(t, events, 1)
	require.NoError(t, json.Unmarshal(events[0], &event))
	assert.Equal(t, "8.50", event.AppliedValue)

	// выбор в пользу переопределения не меняет каталог
	assert.Empty(t, f.messaging.published[messaging.ProductCoreUpdatedEvent])
}

func TestResolveConflict_NotFound(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.service.ResolveConflict(context.Background(), "m1", "ghost", "price", models.DirectiveUseCoreValue)
	assert.ErrorIs(t, err, utils.ErrConflictNotFound)
}

func TestResolveConflict_UnknownDirective(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.service.ResolveConflict(context.Background(), "m1", "p1", "price", "flip_a_coin")
	assert.ErrorIs(t, err, utils.ErrUnknownDirective)
}
