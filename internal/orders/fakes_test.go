package orders

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-premium-orders/internal/payment"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"sort"
	"sync"
	"time"
)

// memStore mensimulasikan Postgres: satu tx pada satu waktu, rollback = restore snapshot.
type memStore struct {
	mu       sync.Mutex
	products map[int64]Product
	units    []memUnit
	orders   map[uuid.UUID]Order
	items    []LineItem
	flash    []LineItem
	nextItem int64

	// beforeReserve dipanggil tepat sebelum ReserveUnits (simulasi race).
	beforeReserve func(s *memStore)
}

type memUnit struct {
	ID        int64
	ProductID int64
	Status    string
	OrderID   *uuid.UUID
}

type memSnapshot struct {
	units    []memUnit
	orders   map[uuid.UUID]Order
	items    []LineItem
	flash    []LineItem
	nextItem int64
}

func newMemStore() *memStore {
	return &memStore{products: map[int64]Product{}, orders: map[uuid.UUID]Order{}}
}

func (s *memStore) addProduct(p Product, units int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	for i := 0; i < units; i++ {
		s.units = append(s.units, memUnit{ID: int64(len(s.units) + 1), ProductID: p.ID, Status: "available"})
	}
}

func (s *memStore) putOrder(o Order, reservedUnits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range o.Items {
		it.OrderID = o.ID
		s.items = append(s.items, it)
	}
	o.Items = nil
	s.orders[o.ID] = o
	for i := range s.units {
		if reservedUnits == 0 {
			break
		}
		if s.units[i].Status == "available" {
			id := o.ID
			s.units[i].Status = "reserved"
			s.units[i].OrderID = &id
			reservedUnits--
		}
	}
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		units:    append([]memUnit(nil), s.units...),
		orders:   make(map[uuid.UUID]Order, len(s.orders)),
		items:    append([]LineItem(nil), s.items...),
		flash:    append([]LineItem(nil), s.flash...),
		nextItem: s.nextItem,
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.units = snap.units
	s.orders = snap.orders
	s.items = snap.items
	s.flash = snap.flash
	s.nextItem = snap.nextItem
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) withItems(o Order) Order {
	o.Items = nil
	for _, it := range s.items {
		if it.OrderID == o.ID {
			o.Items = append(o.Items, it)
		}
	}
	return o
}

func (s *memStore) ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Order
	for _, o := range s.orders {
		if o.UserID == userID && (f.Status == "" || string(o.Status) == f.Status) {
			all = append(all, s.withItems(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (s *memStore) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o = s.withItems(o)
	return &o, nil
}

func (s *memStore) count(productID int64, status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.units {
		if u.ProductID == productID && u.Status == status {
			n++
		}
	}
	return n
}

func (s *memStore) unitsOf(orderID uuid.UUID, status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.units {
		if u.OrderID != nil && *u.OrderID == orderID && u.Status == status {
			n++
		}
	}
	return n
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) itemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type memTx struct{ s *memStore }

func (t *memTx) ProductsByID(ctx context.Context, ids []int64) (map[int64]Product, error) {
	out := map[int64]Product{}
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) CountAvailable(ctx context.Context, productID int64) (int, error) {
	n := 0
	for _, u := range t.s.units {
		if u.ProductID == productID && u.Status == "available" {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	for _, existing := range t.s.orders {
		if existing.OrderNumber == o.OrderNumber {
			return ErrOrderNumberTaken
		}
	}
	cp := *o
	cp.Items = nil
	t.s.orders[o.ID] = cp
	return nil
}

func (t *memTx) InsertLineItem(ctx context.Context, it *LineItem) error {
	if _, ok := t.s.orders[it.OrderID]; !ok {
		return errors.New("fk violation: order")
	}
	t.s.nextItem++
	it.ID = t.s.nextItem
	t.s.items = append(t.s.items, *it)
	return nil
}

func (t *memTx) InsertFlashSaleOrder(ctx context.Context, it LineItem, at time.Time) error {
	t.s.flash = append(t.s.flash, it)
	return nil
}

func (t *memTx) ReserveUnits(ctx context.Context, orderID uuid.UUID, productID int64, qty int, at time.Time) (int, error) {
	if t.s.beforeReserve != nil {
		t.s.beforeReserve(t.s)
	}
	n := 0
	for i := range t.s.units {
		if n == qty {
			break
		}
		u := &t.s.units[i]
		if u.ProductID == productID && u.Status == "available" {
			id := orderID
			u.Status = "reserved"
			u.OrderID = &id
			n++
		}
	}
	return n, nil
}

func (t *memTx) LockOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o = t.s.withItems(o)
	return &o, nil
}

func (t *memTx) LockOrderByNumber(ctx context.Context, number string) (*Order, error) {
	for _, o := range t.s.orders {
		if o.OrderNumber == number {
			o = t.s.withItems(o)
			return &o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) error {
	o, ok := t.s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	applyUpdate(&o, upd)
	t.s.orders[id] = o
	return nil
}

func (t *memTx) ReleaseUnits(ctx context.Context, orderID uuid.UUID, at time.Time) (int, error) {
	n := 0
	for i := range t.s.units {
		u := &t.s.units[i]
		if u.OrderID != nil && *u.OrderID == orderID && u.Status == "reserved" {
			u.Status = "available"
			u.OrderID = nil
			n++
		}
	}
	return n, nil
}

func (t *memTx) SellUnits(ctx context.Context, orderID uuid.UUID, at time.Time) (int, error) {
	n := 0
	for i := range t.s.units {
		u := &t.s.units[i]
		if u.OrderID != nil && *u.OrderID == orderID && u.Status == "reserved" {
			u.Status = "sold"
			n++
		}
	}
	return n, nil
}

func (t *memTx) DueOrders(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var due []Order
	for _, o := range t.s.orders {
		if o.Status == StatusPending && !o.ExpiresAt.After(now) {
			due = append(due, o)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	ids := make([]uuid.UUID, 0, len(due))
	for i, o := range due {
		if i == limit {
			break
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

type fakeInvoices struct {
	mu      sync.Mutex
	created []payment.CreateInvoiceRequest
	expired []string
	err     error
}

func (f *fakeInvoices) CreateInvoice(ctx context.Context, req payment.CreateInvoiceRequest) (*payment.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	id := "inv-" + req.ExternalID
	return &payment.Invoice{
		ID:         id,
		ExternalID: req.ExternalID,
		InvoiceURL: "https://checkout.test/" + id,
		Amount:     req.Amount,
		Status:     "PENDING",
	}, nil
}

func (f *fakeInvoices) ExpireInvoice(ctx context.Context, invoiceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, invoiceID)
	return nil
}

func (f *fakeInvoices) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type publishedEvent struct {
	Topic string
	Key   []byte
	Value []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Topic: topic, Key: key, Value: value})
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Topic)
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
