package models

import (
	"fmt"
	"strconv"
	"time"
)

// CoreProduct представляет взгляд ядровой платформы на товар.
// Данные эфемерны: загружаются на время прогона синхронизации
// и этим слоем не хранятся
type CoreProduct struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	StockLevel    *int      `json:"stock_level,omitempty"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// FieldValue возвращает строковое значение поля товара для сравнения
// с локальным переопределением. Неизвестное поле дает пустое значение и false
func (p *CoreProduct) FieldValue(field string) (string, bool) {
	switch field {
	case "name":
		return p.Name, true
	case "price":
		return strconv.FormatFloat(p.Price, 'f', -1, 64), true
	case "stock_level":
		if p.StockLevel == nil {
			return "", true
		}
		return strconv.Itoa(*p.StockLevel), true
	default:
		return "", false
	}
}

// SetFieldValue устанавливает поле товара из строкового значения,
// обратная операция к FieldValue. Неизвестное поле или значение,
// непригодное для типа поля, дают false
func (p *CoreProduct) SetFieldValue(field, value string) bool {
	switch field {
	case "name":
		p.Name = value
		return true
	case "price":
		price, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}
		p.Price = price
		return true
	case "stock_level":
		if value == "" {
			p.StockLevel = nil
			return true
		}
		stock, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		p.StockLevel = &stock
		return true
	default:
		return false
	}
}

// OverrideMetadata представляет метаданные локального переопределения товара
// в Ad Manager. Запись принадлежит внешнему хранилищу, этот слой читает ее
// только для обнаружения конфликтов
type OverrideMetadata struct {
	MerchantID     string            `json:"merchant_id"`
	ProductID      string            `json:"product_id"`
	Fields         map[string]string `json:"fields"` // переопределенное поле -> локальное значение
	LastModifiedAt time.Time         `json:"last_modified_at"`
}

// ConflictRecord представляет расхождение между данными ядровой платформы
// и локальным переопределением по одному полю товара
type ConflictRecord struct {
	ID                 string             `json:"id"`
	MerchantID         string             `json:"merchant_id"`
	ProductID          string             `json:"product_id"`
	ConflictingField   string             `json:"conflicting_field"`
	CoreValue          string             `json:"core_value"`
	OverrideValue      string             `json:"override_value"`
	ResolutionStrategy ResolutionStrategy `json:"resolution_strategy"`
	ResolutionStatus   ResolutionStatus   `json:"resolution_status"`
	DetectedAt         time.Time          `json:"detected_at"`
}

// CoreOrderItem представляет позицию атрибуцированного заказа
type CoreOrderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// CoreOrder представляет атрибуцированный заказ ядровой платформы
type CoreOrder struct {
	ID                string          `json:"id"`
	Items             []CoreOrderItem `json:"items"`
	TotalValue        float64         `json:"total_value"`
	Currency          string          `json:"currency"`
	Timestamp         time.Time       `json:"timestamp"`
	AttributionSource string          `json:"attribution_source,omitempty"`
}

// String возвращает краткое описание конфликта для логов
func (c *ConflictRecord) String() string {
	return fmt.Sprintf("conflict %s: product %s field %s (core=%q, override=%q)",
		c.ID, c.ProductID, c.ConflictingField, c.CoreValue, c.OverrideValue)
}
