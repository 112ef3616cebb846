package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreProduct_FieldValue(t *testing.T) {
	stock := 15
	p := &CoreProduct{ID: "p1", Name: "Widget", Price: 9.5, StockLevel: &stock}

	tests := []struct {
		field     string
		wantValue string
		wantKnown bool
	}{
		{"name", "Widget", true},
		{"price", "9.5", true},
		{"stock_level", "15", true},
		{"color", "", false},
	}

	for _, tt := range tests {
		value, known := p.FieldValue(tt.field)
		assert.Equal(t, tt.wantKnown, known, "field %s", tt.field)
		assert.Equal(t, tt.wantValue, value, "field %s", tt.field)
	}
}

func TestCoreProduct_FieldValue_NilStock(t *testing.T) {
	p := &CoreProduct{ID: "p1"}

	value, known := p.FieldValue("stock_level")
	assert.True(t, known)
	assert.Equal(t, "", value)
}

func TestCoreProduct_SetFieldValue(t *testing.T) {
	p := &CoreProduct{ID: "p1"}

	require.True(t, p.SetFieldValue("name", "Widget"))
	assert.Equal(t, "Widget", p.Name)

	require.True(t, p.SetFieldValue("price", "10.5"))
	assert.Equal(t, 10.5, p.Price)

	require.True(t, p.SetFieldValue("stock_level", "7"))
	require.NotNil(t, p.StockLevel)
	assert.Equal(t, 7, *p.StockLevel)

	assert.False(t, p.SetFieldValue("price", "not-a-number"))
	assert.False(t, p.SetFieldValue("color", "red"))
}

func TestResolutionStrategy_Valid(t *testing.T) {
	assert.True(t, StrategyPrioritizeAdManager.Valid())
	assert.True(t, StrategyPrioritizeCorePlatform.Valid())
	assert.True(t, StrategyManualReview.Valid())
	assert.False(t, ResolutionStrategy("coin_flip").Valid())
}

func TestResolutionDirective_Valid(t *testing.T) {
	assert.True(t, DirectiveUseCoreValue.Valid())
	assert.True(t, DirectiveUseAdManagerValue.Valid())
	assert.False(t, ResolutionDirective("").Valid())
}
