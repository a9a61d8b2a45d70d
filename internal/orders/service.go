package orders

import (
	"context"
	"errors"
	"fmt"
	kafkax "github.com/ariefcatur/go-premium-orders/internal/kafka"
	"github.com/ariefcatur/go-premium-orders/internal/payment"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"sort"
	"time"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
	MaxItemQuantity  = 100
)

// Store adalah batas transaksi. Semua langkah checkout jalan di dalam satu WithTx.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, int, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
}

type Tx interface {
	ProductsByID(ctx context.Context, ids []int64) (map[int64]Product, error)
	CountAvailable(ctx context.Context, productID int64) (int, error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertLineItem(ctx context.Context, it *LineItem) error
	InsertFlashSaleOrder(ctx context.Context, it LineItem, at time.Time) error
	ReserveUnits(ctx context.Context, orderID uuid.UUID, productID int64, qty int, at time.Time) (int, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	LockOrderByNumber(ctx context.Context, number string) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) error
	ReleaseUnits(ctx context.Context, orderID uuid.UUID, at time.Time) (int, error)
	SellUnits(ctx context.Context, orderID uuid.UUID, at time.Time) (int, error)
	DueOrders(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type InvoiceIssuer interface {
	CreateInvoice(ctx context.Context, req payment.CreateInvoiceRequest) (*payment.Invoice, error)
	ExpireInvoice(ctx context.Context, invoiceID string) error
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store       Store
	Invoices    InvoiceIssuer
	Events      Publisher
	Log         *zap.Logger
	ServiceName string
	// Hold = masa tahan stok = durasi invoice. Dihitung sekali per order.
	Hold       time.Duration
	SuccessURL string
	FailureURL string
	Now        func() time.Time
}

type CheckoutResult struct {
	Order   Order
	Invoice payment.Invoice
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateOrder: validasi -> harga -> cek stok -> invoice -> simpan order+item -> reserve -> commit.
// Gagal setelah invoice terbit = invoice di-expire (kompensasi).
func (s *Service) CreateOrder(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	items, err := normalize(req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := Order{
		ID:            uuid.New(),
		OrderNumber:   NewOrderNumber(now),
		UserID:        req.Actor.UserID,
		Type:          OrderType(req.Type),
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(s.Hold),
	}
	log := s.Log.With(zap.String("order_number", order.OrderNumber), zap.String("user_id", order.UserID))

	var invoice *payment.Invoice
	err = s.Store.WithTx(ctx, func(tx Tx) error {
		lines, err := s.priceItems(ctx, tx, req.Actor.Role, items, now)
		if err != nil {
			return err
		}
		for _, li := range lines {
			order.TotalAmount += li.TotalPrice
		}

		// stok semua item dicek dulu: jangan pernah terbitkan invoice untuk stok yang tidak ada
		if err := checkStock(ctx, tx, lines); err != nil {
			return err
		}

		invoice, err = s.Invoices.CreateInvoice(ctx, s.invoiceRequest(order, lines, req.Actor))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvoice, err)
		}
		order.InvoiceID = invoice.ID
		order.InvoiceURL = invoice.InvoiceURL

		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}
		for i := range lines {
			lines[i].OrderID = order.ID
			if err := tx.InsertLineItem(ctx, &lines[i]); err != nil {
				return err
			}
			if lines[i].IsFlashSale {
				if err := tx.InsertFlashSaleOrder(ctx, lines[i], now); err != nil {
					return err
				}
			}
		}

		for _, li := range lines {
			n, err := tx.ReserveUnits(ctx, order.ID, li.ProductID, li.Quantity, now)
			if err != nil {
				return fmt.Errorf("reserve product %d: %w", li.ProductID, err)
			}
			if n != li.Quantity {
				return &StockError{
					ProductID:   li.ProductID,
					ProductName: li.ProductName,
					Requested:   li.Quantity,
					Available:   n,
					Err:         ErrReservationShortfall,
				}
			}
		}
		order.Items = lines
		return nil
	})
	if err != nil {
		if invoice != nil {
			log.Warn("checkout rolled back after invoice was issued, expiring invoice",
				zap.String("invoice_id", invoice.ID), zap.Error(err))
			s.expireInvoice(invoice.ID)
		}
		return nil, err
	}

	log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("total_amount", order.TotalAmount),
		zap.String("invoice_id", order.InvoiceID))
	s.publish(ctx, EventOrderCreated, order)

	return &CheckoutResult{Order: order, Invoice: *invoice}, nil
}

func normalize(req CheckoutRequest) ([]ItemInput, error) {
	if req.Actor.UserID == "" {
		return nil, invalid("user is required")
	}
	if req.Type == "" {
		return nil, invalid("type is required")
	}
	switch OrderType(req.Type) {
	case TypePremium:
	case TypeSMM:
		return nil, invalid("smm orders are handled by the smm service")
	default:
		return nil, invalid("unsupported order type %q", req.Type)
	}
	if len(req.Items) == 0 {
		return nil, invalid("items is required")
	}

	// product yang sama digabung supaya cek stok tidak dihitung dua kali
	merged := map[int64]int{}
	for _, it := range req.Items {
		if it.ProductID <= 0 {
			return nil, invalid("invalid product_id %d", it.ProductID)
		}
		if it.Quantity <= 0 || it.Quantity > MaxItemQuantity {
			return nil, invalid("invalid quantity %d for product %d", it.Quantity, it.ProductID)
		}
		merged[it.ProductID] += it.Quantity
	}
	out := make([]ItemInput, 0, len(merged))
	for pid, qty := range merged {
		if qty > MaxItemQuantity {
			return nil, invalid("invalid quantity %d for product %d", qty, pid)
		}
		out = append(out, ItemInput{ProductID: pid, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *Service) priceItems(ctx context.Context, tx Tx, role Role, items []ItemInput, now time.Time) ([]LineItem, error) {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := tx.ProductsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]LineItem, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok || !p.IsActive {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, it.ProductID)
		}
		q := ResolvePrice(p, role, it.Quantity, now)
		lines = append(lines, LineItem{
			ProductID:       p.ID,
			ProductName:     p.Name,
			Quantity:        it.Quantity,
			UnitPrice:       q.UnitPrice,
			TotalPrice:      q.UnitPrice * int64(it.Quantity),
			IsFlashSale:     q.IsFlashSale,
			DiscountPercent: q.DiscountPercent,
			OriginalPrice:   q.OriginalPrice,
			SavingsAmount:   q.SavingsAmount,
		})
	}
	return lines, nil
}

func checkStock(ctx context.Context, tx Tx, lines []LineItem) error {
	for _, li := range lines {
		available, err := tx.CountAvailable(ctx, li.ProductID)
		if err != nil {
			return err
		}
		if available < li.Quantity {
			return &StockError{
				ProductID:   li.ProductID,
				ProductName: li.ProductName,
				Requested:   li.Quantity,
				Available:   available,
				Err:         ErrInsufficientStock,
			}
		}
	}
	return nil
}

func (s *Service) invoiceRequest(o Order, lines []LineItem, actor Actor) payment.CreateInvoiceRequest {
	items := make([]payment.Item, 0, len(lines))
	for _, li := range lines {
		items = append(items, payment.Item{Name: li.ProductName, Quantity: li.Quantity, Price: li.UnitPrice})
	}
	return payment.CreateInvoiceRequest{
		ExternalID:  o.OrderNumber,
		Amount:      o.TotalAmount,
		Description: "Pembelian akun premium " + o.OrderNumber,
		Items:       items,
		Customer:    payment.Customer{ID: actor.UserID, Email: actor.Email},
		SuccessURL:  s.SuccessURL,
		FailureURL:  s.FailureURL,
		Duration:    s.Hold,
	}
}

// expireInvoice best effort; context request bisa sudah mati saat rollback.
func (s *Service) expireInvoice(invoiceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Invoices.ExpireInvoice(ctx, invoiceID); err != nil {
		s.Log.Error("expire invoice failed, invoice left orphaned",
			zap.String("invoice_id", invoiceID), zap.Error(err))
	}
}

func (s *Service) ListOrders(ctx context.Context, userID string, f ListFilter) (*OrderPage, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, invalid("unknown status %q", f.Status)
	}

	list, total, err := s.Store.ListOrders(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	page := &OrderPage{Orders: make([]OrderView, 0, len(list)), Total: total, Limit: f.Limit, Offset: f.Offset}
	for _, o := range list {
		page.Orders = append(page.Orders, View(o, now))
	}
	return page, nil
}

func (s *Service) GetOrder(ctx context.Context, userID string, id uuid.UUID) (*OrderView, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	v := View(*o, s.now())
	return &v, nil
}

// CancelOrder oleh pemilik. Aturan eligibility dievaluasi ulang di dalam tx dengan row terkunci.
func (s *Service) CancelOrder(ctx context.Context, userID string, id uuid.UUID) (*OrderView, error) {
	var order Order
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrOrderNotFound
		}
		if p := Project(*o, now); !p.CanCancel {
			return fmt.Errorf("%w: status %s", ErrNotCancellable, p.DisplayStatus)
		}

		reason := "cancelled by user"
		upd := StatusUpdate{Status: StatusCancelled, PaymentStatus: PaymentExpired, Reason: &reason, At: now}
		if err := transition(ctx, tx, o, upd); err != nil {
			return err
		}
		if _, err := tx.ReleaseUnits(ctx, o.ID, now); err != nil {
			return err
		}
		order = *o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("order cancelled by user", zap.String("order_id", order.ID.String()))
	s.expireInvoice(order.InvoiceID)
	s.publish(ctx, EventOrderCancelled, order)

	v := View(order, now)
	return &v, nil
}

type CallbackResult struct {
	OrderID uuid.UUID
	Ignored bool
}

// HandlePaymentCallback memproses webhook invoice. Callback ulang aman (no-op).
func (s *Service) HandlePaymentCallback(ctx context.Context, cb payment.Callback) (*CallbackResult, error) {
	if cb.ExternalID == "" {
		return nil, invalid("external_id is required")
	}
	now := s.now()

	var (
		order   Order
		event   string
		ignored bool
	)
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrderByNumber(ctx, cb.ExternalID)
		if err != nil {
			return err
		}
		order = *o
		log := s.Log.With(zap.String("order_id", o.ID.String()), zap.String("callback_status", cb.Status))

		if o.InvoiceID != "" && cb.ID != "" && o.InvoiceID != cb.ID {
			log.Warn("callback invoice id does not match order", zap.String("invoice_id", cb.ID))
			ignored = true
			return nil
		}
		if o.Status != StatusPending {
			if cb.IsPaid() && o.Status != StatusPaid {
				log.Warn("payment received for order that is no longer pending", zap.String("status", string(o.Status)))
			}
			ignored = true
			return nil
		}

		switch {
		case cb.IsPaid():
			if cb.PaidAmount > 0 && cb.PaidAmount < o.TotalAmount {
				log.Warn("underpaid invoice", zap.Int64("paid", cb.PaidAmount), zap.Int64("total", o.TotalAmount))
				ignored = true
				return nil
			}
			method := cb.PaymentMethod
			upd := StatusUpdate{Status: StatusPaid, PaymentStatus: PaymentPaid, PaymentMethod: &method, PaidAt: &now, At: now}
			if err := transition(ctx, tx, o, upd); err != nil {
				return err
			}
			n, err := tx.SellUnits(ctx, o.ID, now)
			if err != nil {
				return err
			}
			if n != totalQuantity(o.Items) {
				log.Error("sold unit count does not match order items", zap.Int("sold", n))
			}
			event = EventOrderPaid
		case cb.IsExpired():
			if err := expire(ctx, tx, o, "invoice expired", now); err != nil {
				return err
			}
			event = EventOrderExpired
		default:
			ignored = true
			return nil
		}
		order = *o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event != "" {
		s.Log.Info("payment callback applied", zap.String("order_id", order.ID.String()), zap.String("event", event))
		s.publish(ctx, event, order)
	}
	return &CallbackResult{OrderID: order.ID, Ignored: ignored}, nil
}

// ExpireDue membatalkan order pending yang lewat expires_at dan melepas stoknya.
// Dipanggil sweeper; satu batch = satu transaksi.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	now := s.now()
	var expired []Order
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		ids, err := tx.DueOrders(ctx, now, limit)
		if err != nil {
			return err
		}
		for _, id := range ids {
			o, err := tx.LockOrder(ctx, id)
			if err != nil {
				return err
			}
			// sudah dibayar/dibatalkan di antara scan dan lock
			if o.Status != StatusPending {
				continue
			}
			if err := expire(ctx, tx, o, "payment window expired", now); err != nil {
				return err
			}
			expired = append(expired, *o)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, o := range expired {
		s.publish(ctx, EventOrderExpired, o)
	}
	if len(expired) > 0 {
		s.Log.Info("expired orders swept", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

func expire(ctx context.Context, tx Tx, o *Order, reason string, now time.Time) error {
	upd := StatusUpdate{
		Status:          StatusCancelled,
		PaymentStatus:   PaymentExpired,
		AutoCancelledAt: &now,
		Reason:          &reason,
		At:              now,
	}
	if err := transition(ctx, tx, o, upd); err != nil {
		return err
	}
	_, err := tx.ReleaseUnits(ctx, o.ID, now)
	return err
}

// transition menolak perpindahan status di luar validNext sebelum ada yang ditulis.
func transition(ctx context.Context, tx Tx, o *Order, upd StatusUpdate) error {
	if !CanTransition(o.Status, upd.Status) {
		return fmt.Errorf("%w: %s -> %s (order %s)", ErrInvalidTransition, o.Status, upd.Status, o.ID)
	}
	if err := tx.UpdateOrderStatus(ctx, o.ID, upd); err != nil {
		return err
	}
	applyUpdate(o, upd)
	return nil
}

func applyUpdate(o *Order, upd StatusUpdate) {
	o.Status = upd.Status
	o.PaymentStatus = upd.PaymentStatus
	o.UpdatedAt = upd.At
	if upd.PaymentMethod != nil {
		o.PaymentMethod = upd.PaymentMethod
	}
	if upd.PaidAt != nil {
		o.PaidAt = upd.PaidAt
	}
	if upd.AutoCancelledAt != nil {
		o.AutoCancelledAt = upd.AutoCancelledAt
	}
	if upd.Reason != nil {
		o.CancellationReason = upd.Reason
	}
}

func totalQuantity(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// publish setelah commit, fire-and-forget: event hilang hanya bikin cache stok telat segar.
func (s *Service) publish(ctx context.Context, eventType string, o Order) {
	if s.Events == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.ServiceName,
		TraceID:       TraceID(ctx),
		CorrelationID: o.ID.String(),
		Payload:       kafkax.MustMarshal(payloadOf(o)),
	}
	s.Events.Publish(eventTopics[eventType], PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(eventType, ev.EventVersion)...)
}

// IsBusinessError: error yang lahir dari aturan bisnis, bukan infrastruktur.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrReservationShortfall) ||
		errors.Is(err, ErrNotCancellable) ||
		errors.Is(err, ErrInvalidTransition)
}
