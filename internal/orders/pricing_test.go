package orders

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func flashProduct(start, end time.Time, pct int) Product {
	return Product{
		ID: 1, Name: "Canva Pro", UserPrice: 30000, ResellerPrice: 25000, IsActive: true,
		IsFlashSale: true, FlashSaleStart: &start, FlashSaleEnd: &end, FlashSaleDiscount: pct,
	}
}

func TestResolvePrice_FlashSale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := flashProduct(now.Add(-time.Hour), now.Add(time.Hour), 20)

	q := ResolvePrice(p, RoleUser, 3, now)

	assert.True(t, q.IsFlashSale)
	assert.Equal(t, int64(24000), q.UnitPrice)
	require.NotNil(t, q.OriginalPrice)
	assert.Equal(t, int64(30000), *q.OriginalPrice)
	assert.Equal(t, int64(18000), q.SavingsAmount)
	assert.Equal(t, 20, q.DiscountPercent)
}

func TestResolvePrice_FlashSaleWindowIsInclusive(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	p := flashProduct(start, end, 10)

	tests := []struct {
		name  string
		now   time.Time
		flash bool
		unit  int64
	}{
		{"before start", start.Add(-time.Second), false, 30000},
		{"at start", start, true, 27000},
		{"middle", start.Add(time.Hour), true, 27000},
		{"at end", end, true, 27000},
		{"one second after end", end.Add(time.Second), false, 30000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ResolvePrice(p, RoleUser, 1, tt.now)
			assert.Equal(t, tt.flash, q.IsFlashSale)
			assert.Equal(t, tt.unit, q.UnitPrice)
		})
	}
}

func TestResolvePrice_FlashSaleNeedsWindow(t *testing.T) {
	now := time.Now()
	p := Product{ID: 1, UserPrice: 30000, IsFlashSale: true, FlashSaleDiscount: 50}

	q := ResolvePrice(p, RoleUser, 1, now)

	assert.False(t, q.IsFlashSale)
	assert.Equal(t, int64(30000), q.UnitPrice)
}

func TestResolvePrice_ResellerBeatsFlashSale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := flashProduct(now.Add(-time.Hour), now.Add(time.Hour), 50)

	q := ResolvePrice(p, RoleReseller, 2, now)

	assert.False(t, q.IsFlashSale)
	assert.Equal(t, int64(25000), q.UnitPrice)
	require.NotNil(t, q.OriginalPrice)
	assert.Equal(t, int64(30000), *q.OriginalPrice)
	assert.Equal(t, int64(10000), q.SavingsAmount)
	assert.Zero(t, q.DiscountPercent)
}

func TestResolvePrice_UserPriceAndAnchor(t *testing.T) {
	fake := int64(45000)
	lower := int64(20000)
	now := time.Now()

	q := ResolvePrice(Product{UserPrice: 35000, FakePrice: &fake}, RoleUser, 2, now)
	assert.Equal(t, int64(35000), q.UnitPrice)
	require.NotNil(t, q.OriginalPrice)
	assert.Equal(t, int64(45000), *q.OriginalPrice)
	assert.Equal(t, int64(20000), q.SavingsAmount)

	q = ResolvePrice(Product{UserPrice: 35000, FakePrice: &lower}, RoleUser, 2, now)
	assert.Nil(t, q.OriginalPrice)
	assert.Zero(t, q.SavingsAmount)

	q = ResolvePrice(Product{UserPrice: 35000}, RoleUser, 1, now)
	assert.Equal(t, int64(35000), q.UnitPrice)
	assert.Nil(t, q.OriginalPrice)
}

func TestDiscountedRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(24000), discounted(30000, 20))
	assert.Equal(t, int64(6699), discounted(9999, 33))
	assert.Equal(t, int64(8), discounted(15, 50))
	assert.Equal(t, int64(0), discounted(15000, 100))
	assert.Equal(t, int64(15000), discounted(15000, 0))
}
