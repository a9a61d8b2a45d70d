package orders

import "time"

type Quote struct {
	UnitPrice       int64
	OriginalPrice   *int64
	SavingsAmount   int64
	IsFlashSale     bool
	DiscountPercent int
}

// FlashSaleActive: batas window inklusif di kedua sisi.
func (p Product) FlashSaleActive(now time.Time) bool {
	if !p.IsFlashSale || p.FlashSaleStart == nil || p.FlashSaleEnd == nil {
		return false
	}
	return !now.Before(*p.FlashSaleStart) && !now.After(*p.FlashSaleEnd)
}

// ResolvePrice menentukan harga satuan. Urutan aturan penting, yang pertama cocok menang:
// flash sale (bukan reseller) -> harga reseller -> harga user (+ harga coret).
func ResolvePrice(p Product, role Role, qty int, now time.Time) Quote {
	q := int64(qty)

	if p.FlashSaleActive(now) && role != RoleReseller {
		unit := discounted(p.UserPrice, p.FlashSaleDiscount)
		orig := p.UserPrice
		return Quote{
			UnitPrice:       unit,
			OriginalPrice:   &orig,
			SavingsAmount:   (orig - unit) * q,
			IsFlashSale:     true,
			DiscountPercent: p.FlashSaleDiscount,
		}
	}

	if role == RoleReseller {
		orig := p.UserPrice
		return Quote{
			UnitPrice:     p.ResellerPrice,
			OriginalPrice: &orig,
			SavingsAmount: (orig - p.ResellerPrice) * q,
		}
	}

	quote := Quote{UnitPrice: p.UserPrice}
	if p.FakePrice != nil && *p.FakePrice > p.UserPrice {
		anchor := *p.FakePrice
		quote.OriginalPrice = &anchor
		quote.SavingsAmount = (anchor - p.UserPrice) * q
	}
	return quote
}

// round(price * (1 - pct/100)) dalam rupiah penuh, half-up.
func discounted(price int64, pct int) int64 {
	return (price*int64(100-pct) + 50) / 100
}
