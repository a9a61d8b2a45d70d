package orders

import (
	"github.com/google/uuid"
	"time"
)

// Product adalah snapshot premium_products yang relevan untuk pricing.
type Product struct {
	ID                int64
	Name              string
	UserPrice         int64
	ResellerPrice     int64
	FakePrice         *int64 // harga coret
	IsActive          bool
	IsFlashSale       bool
	FlashSaleStart    *time.Time
	FlashSaleEnd      *time.Time
	FlashSaleDiscount int // persen
}

type Order struct {
	ID                 uuid.UUID
	OrderNumber        string
	UserID             string
	Type               OrderType
	TotalAmount        int64
	Status             Status
	PaymentStatus      PaymentStatus
	PaymentMethod      *string
	InvoiceID          string
	InvoiceURL         string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ExpiresAt          time.Time
	PaidAt             *time.Time
	AutoCancelledAt    *time.Time
	CancellationReason *string
	Items              []LineItem
}

// LineItem: harga dikunci saat order dibuat, tidak pernah dihitung ulang.
type LineItem struct {
	ID              int64
	OrderID         uuid.UUID
	ProductID       int64
	ProductName     string
	Quantity        int
	UnitPrice       int64
	TotalPrice      int64
	IsFlashSale     bool
	DiscountPercent int
	OriginalPrice   *int64
	SavingsAmount   int64
}

type ItemInput struct {
	ProductID int64
	Quantity  int
}

type Role string

const (
	RoleUser     Role = "user"
	RoleReseller Role = "reseller"
)

type Actor struct {
	UserID string
	Role   Role
	Email  string
}

type CheckoutRequest struct {
	Actor Actor
	Type  string
	Items []ItemInput
}

// OrderView = order + field turunan dari Project.
type OrderView struct {
	Order
	Projection
}

type ListFilter struct {
	Limit  int
	Offset int
	Status string
}

type OrderPage struct {
	Orders []OrderView
	Total  int
	Limit  int
	Offset int
}

type StatusUpdate struct {
	Status          Status
	PaymentStatus   PaymentStatus
	PaymentMethod   *string
	PaidAt          *time.Time
	AutoCancelledAt *time.Time
	Reason          *string
	At              time.Time
}
