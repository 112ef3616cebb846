package integration

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/athebyme/admanager-platform/integration-service/internal/utils"
)

// DirectOrderIntegration строит ссылки прямого заказа, ведущие
// из рекламного блока в корзину витрины ядровой платформы.
// Построение ссылки чисто локальное, сетевых вызовов нет
type DirectOrderIntegration struct {
	storefrontBaseURL string
	checkoutPath      string
}

// NewDirectOrderIntegration создает новый генератор ссылок прямого заказа
func NewDirectOrderIntegration(storefrontBaseURL, checkoutPath string) *DirectOrderIntegration {
	return &DirectOrderIntegration{
		storefrontBaseURL: strings.TrimRight(storefrontBaseURL, "/"),
		checkoutPath:      checkoutPath,
	}
}

// GenerateLink возвращает URL, который кладет товар в корзину витрины
// в пределах мерчанта. Количество должно быть не меньше единицы;
// подстановку значения по умолчанию для неуказанного количества
// выполняет вызывающая сторона
func (s *DirectOrderIntegration) GenerateLink(merchantID, productID string, quantity int) (string, error) {
	if merchantID == "" {
		return "", utils.ErrInvalidMerchantID
	}
	if productID == "" {
		return "", utils.ErrInvalidProductID
	}
	if quantity < 1 {
		return "", utils.ErrInvalidQuantity
	}

	query := url.Values{}
	query.Set("merchant_id", merchantID)
	query.Set("product_id", productID)
	query.Set("quantity", strconv.Itoa(quantity))

	return s.storefrontBaseURL + s.checkoutPath + "?" + query.Encode(), nil
}
