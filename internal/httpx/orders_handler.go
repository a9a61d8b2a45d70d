package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-premium-orders/internal/orders"
	"github.com/ariefcatur/go-premium-orders/internal/payment"
	"github.com/ariefcatur/go-premium-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type OrderService interface {
	CreateOrder(ctx context.Context, req orders.CheckoutRequest) (*orders.CheckoutResult, error)
	ListOrders(ctx context.Context, userID string, f orders.ListFilter) (*orders.OrderPage, error)
	GetOrder(ctx context.Context, userID string, id uuid.UUID) (*orders.OrderView, error)
	CancelOrder(ctx context.Context, userID string, id uuid.UUID) (*orders.OrderView, error)
}

type OrdersHandler struct {
	Orders OrderService
	// Idem opsional; nil = Idempotency-Key diabaikan.
	Idem *redisx.Idempotency
	Log  *zap.Logger
	Dev  bool
	Now  func() time.Time
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(RequireActor)
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/cancel", h.cancelOrder)
	})
}

type createOrderReq struct {
	Type  string `json:"type"`
	Items []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

type itemJSON struct {
	ID              int64  `json:"id"`
	ProductID       int64  `json:"product_id"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price"`
	TotalPrice      int64  `json:"total_price"`
	IsFlashSale     bool   `json:"is_flash_sale"`
	DiscountPercent int    `json:"flash_sale_discount"`
	OriginalPrice   *int64 `json:"original_price"`
	SavingsAmount   int64  `json:"savings_amount"`
}

type orderJSON struct {
	ID                 string     `json:"id"`
	OrderNumber        string     `json:"order_number"`
	UserID             string     `json:"user_id"`
	Type               string     `json:"type"`
	TotalAmount        int64      `json:"total_amount"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	PaymentMethod      *string    `json:"payment_method"`
	InvoiceID          string     `json:"invoice_id"`
	InvoiceURL         string     `json:"invoice_url"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
	PaidAt             *time.Time `json:"paid_at"`
	AutoCancelledAt    *time.Time `json:"auto_cancelled_at"`
	CancellationReason *string    `json:"cancellation_reason"`
	DisplayStatus      string     `json:"display_status"`
	MinutesUntilExpiry int        `json:"minutes_until_expiry"`
	CanCancel          bool       `json:"can_cancel"`
	Items              []itemJSON `json:"items"`
}

type invoiceJSON struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	InvoiceURL string    `json:"invoice_url"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status,omitempty"`
	ExpiryDate time.Time `json:"expiry_date"`
}

type checkoutResp struct {
	Success    bool        `json:"success"`
	Order      orderJSON   `json:"order"`
	Invoice    invoiceJSON `json:"invoice"`
	Idempotent bool        `json:"idempotent,omitempty"`
}

type orderResp struct {
	Success bool      `json:"success"`
	Order   orderJSON `json:"order"`
}

type pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type listResp struct {
	Success    bool        `json:"success"`
	Orders     []orderJSON `json:"orders"`
	Pagination pagination  `json:"pagination"`
}

func toOrderJSON(v orders.OrderView) orderJSON {
	out := orderJSON{
		ID:                 v.ID.String(),
		OrderNumber:        v.OrderNumber,
		UserID:             v.UserID,
		Type:               string(v.Type),
		TotalAmount:        v.TotalAmount,
		Status:             string(v.Status),
		PaymentStatus:      string(v.PaymentStatus),
		PaymentMethod:      v.PaymentMethod,
		InvoiceID:          v.InvoiceID,
		InvoiceURL:         v.InvoiceURL,
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
		ExpiresAt:          v.ExpiresAt,
		PaidAt:             v.PaidAt,
		AutoCancelledAt:    v.AutoCancelledAt,
		CancellationReason: v.CancellationReason,
		DisplayStatus:      v.DisplayStatus,
		MinutesUntilExpiry: v.MinutesUntilExpiry,
		CanCancel:          v.CanCancel,
		Items:              make([]itemJSON, 0, len(v.Items)),
	}
	for _, it := range v.Items {
		out.Items = append(out.Items, itemJSON{
			ID:              it.ID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			TotalPrice:      it.TotalPrice,
			IsFlashSale:     it.IsFlashSale,
			DiscountPercent: it.DiscountPercent,
			OriginalPrice:   it.OriginalPrice,
			SavingsAmount:   it.SavingsAmount,
		})
	}
	return out
}

func toInvoiceJSON(inv payment.Invoice) invoiceJSON {
	return invoiceJSON{
		ID:         inv.ID,
		ExternalID: inv.ExternalID,
		InvoiceURL: inv.InvoiceURL,
		Amount:     inv.Amount,
		Status:     inv.Status,
		ExpiryDate: inv.ExpiryDate,
	}
}

func (h *OrdersHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *OrdersHandler) responder() responder { return responder{log: h.Log, dev: h.Dev} }

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var body createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.responder().fail(w, r, fmt.Errorf("%w: invalid json", orders.ErrInvalidRequest))
		return
	}
	req := orders.CheckoutRequest{Actor: actor, Type: body.Type, Items: make([]orders.ItemInput, 0, len(body.Items))}
	for _, it := range body.Items {
		req.Items = append(req.Items, orders.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	ctx := r.Context()
	// Fast-path idempotency via Redis (optional, DB tetap jadi kebenaran)
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key != "" && h.Idem != nil {
		orderID, err := h.Idem.Begin(ctx, actor.UserID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			h.responder().fail(w, r, err)
			return
		case err != nil:
			h.Log.Warn("idempotency store unavailable, continuing without it", zap.Error(err))
			key = ""
		case orderID != "":
			h.replay(w, r, actor, orderID)
			return
		}
	} else {
		key = ""
	}

	res, err := h.Orders.CreateOrder(ctx, req)
	if err != nil {
		if key != "" {
			if aerr := h.Idem.Abort(context.WithoutCancel(ctx), actor.UserID, key); aerr != nil {
				h.Log.Warn("release idempotency key failed", zap.Error(aerr))
			}
		}
		h.responder().fail(w, r, err)
		return
	}
	if key != "" {
		if cerr := h.Idem.Complete(context.WithoutCancel(ctx), actor.UserID, key, res.Order.ID.String()); cerr != nil {
			h.Log.Warn("store idempotency key failed", zap.Error(cerr))
		}
	}

	writeJSON(w, http.StatusOK, checkoutResp{
		Success: true,
		Order:   toOrderJSON(orders.View(res.Order, h.now())),
		Invoice: toInvoiceJSON(res.Invoice),
	})
}

// replay menjawab Idempotency-Key yang sudah sukses dengan order yang tersimpan.
func (h *OrdersHandler) replay(w http.ResponseWriter, r *http.Request, actor orders.Actor, orderID string) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		h.responder().fail(w, r, fmt.Errorf("corrupt idempotency record %q: %w", orderID, err))
		return
	}
	v, err := h.Orders.GetOrder(r.Context(), actor.UserID, id)
	if err != nil {
		h.responder().fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResp{
		Success: true,
		Order:   toOrderJSON(*v),
		Invoice: invoiceJSON{
			ID:         v.InvoiceID,
			ExternalID: v.OrderNumber,
			InvoiceURL: v.InvoiceURL,
			Amount:     v.TotalAmount,
			ExpiryDate: v.ExpiresAt,
		},
		Idempotent: true,
	})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	q := r.URL.Query()
	f := orders.ListFilter{Status: q.Get("status")}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		h.responder().fail(w, r, fmt.Errorf("%w: limit must be a number", orders.ErrInvalidRequest))
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		h.responder().fail(w, r, fmt.Errorf("%w: offset must be a number", orders.ErrInvalidRequest))
		return
	}

	page, err := h.Orders.ListOrders(r.Context(), actor.UserID, f)
	if err != nil {
		h.responder().fail(w, r, err)
		return
	}
	resp := listResp{
		Success:    true,
		Orders:     make([]orderJSON, 0, len(page.Orders)),
		Pagination: pagination{Total: page.Total, Limit: page.Limit, Offset: page.Offset},
	}
	for _, v := range page.Orders {
		resp.Orders = append(resp.Orders, toOrderJSON(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, orders.ErrOrderNotFound
	}
	return id, nil
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, err := orderIDParam(r)
	if err != nil {
		h.responder().fail(w, r, err)
		return
	}
	v, err := h.Orders.GetOrder(r.Context(), actor.UserID, id)
	if err != nil {
		h.responder().fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResp{Success: true, Order: toOrderJSON(*v)})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, err := orderIDParam(r)
	if err != nil {
		h.responder().fail(w, r, err)
		return
	}
	v, err := h.Orders.CancelOrder(r.Context(), actor.UserID, id)
	if err != nil {
		h.responder().fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResp{Success: true, Order: toOrderJSON(*v)})
}
