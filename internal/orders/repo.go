package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

// querier dipenuhi *pgxpool.Pool maupun pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const orderColumns = `id, order_number, user_id, order_type, total_amount, status, payment_status,
	payment_method, invoice_id, invoice_url, created_at, updated_at, expires_at,
	paid_at, auto_cancelled_at, cancellation_reason`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o         Order
		typ       string
		status    string
		payStatus string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &typ, &o.TotalAmount, &status, &payStatus,
		&o.PaymentMethod, &o.InvoiceID, &o.InvoiceURL, &o.CreatedAt, &o.UpdatedAt, &o.ExpiresAt,
		&o.PaidAt, &o.AutoCancelledAt, &o.CancellationReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Type = OrderType(typ)
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payStatus)
	return &o, nil
}

// loadItems mengisi Items untuk semua order sekaligus (hindari N+1).
func loadItems(ctx context.Context, q querier, list []*Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(list))
	byID := make(map[uuid.UUID]*Order, len(list))
	for _, o := range list {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}

	rows, err := q.Query(ctx, `
		SELECT i.id, i.order_id, i.product_id, p.name, i.quantity, i.unit_price, i.total_price,
		       i.is_flash_sale, i.flash_sale_discount, i.original_price, i.savings_amount
		FROM order_premium_items i
		JOIN premium_products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity,
			&it.UnitPrice, &it.TotalPrice, &it.IsFlashSale, &it.DiscountPercent,
			&it.OriginalPrice, &it.SavingsAmount); err != nil {
			return err
		}
		if o := byID[it.OrderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q querier, where string, arg any, lock bool) (*Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where
	if lock {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, q, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOrder(ctx, r.DB, `id = $1`, id, false)
}

func (r *Repo) ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, int, error) {
	var total int
	if err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE user_id = $1 AND ($2::text = '' OR status = $2)`, userID, f.Status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`, userID, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	var ptrs []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := loadItems(ctx, r.DB, ptrs); err != nil {
		return nil, 0, err
	}
	out := make([]Order, 0, len(ptrs))
	for _, o := range ptrs {
		out = append(out, *o)
	}
	return out, total, nil
}

// AvailableStock = jumlah premium_accounts berstatus available. ErrProductNotFound kalau produk tidak ada.
func (r *Repo) AvailableStock(ctx context.Context, productID int64) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(a.id)
		FROM premium_products p
		LEFT JOIN premium_accounts a ON a.product_id = p.id AND a.status = 'available'
		WHERE p.id = $1
		GROUP BY p.id`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	return n, err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) ProductsByID(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, name, user_price, reseller_price, fake_price, is_active,
		       is_flash_sale, flash_sale_start, flash_sale_end, flash_sale_discount
		FROM premium_products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UserPrice, &p.ResellerPrice, &p.FakePrice, &p.IsActive,
			&p.IsFlashSale, &p.FlashSaleStart, &p.FlashSaleEnd, &p.FlashSaleDiscount); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, order_number, user_id, order_type, total_amount, status, payment_status,
		                   invoice_id, invoice_url, created_at, updated_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.OrderNumber, o.UserID, string(o.Type), o.TotalAmount, string(o.Status), string(o.PaymentStatus),
		o.InvoiceID, o.InvoiceURL, o.CreatedAt, o.UpdatedAt, o.ExpiresAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", ErrOrderNumberTaken, o.OrderNumber)
	}
	return err
}

func (t *pgTx) InsertLineItem(ctx context.Context, it *LineItem) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO order_premium_items(order_id, product_id, quantity, unit_price, total_price,
		                                is_flash_sale, flash_sale_discount, original_price, savings_amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice,
		it.IsFlashSale, it.DiscountPercent, it.OriginalPrice, it.SavingsAmount).Scan(&it.ID)
}

// InsertFlashSaleOrder: tabel analitik, hanya untuk item yang kena harga flash sale.
func (t *pgTx) InsertFlashSaleOrder(ctx context.Context, it LineItem, at time.Time) error {
	var original int64
	if it.OriginalPrice != nil {
		original = *it.OriginalPrice
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO flash_sale_orders(order_id, product_id, quantity, original_price, flash_price,
		                              discount_percent, savings_amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		it.OrderID, it.ProductID, it.Quantity, original, it.UnitPrice, it.DiscountPercent, it.SavingsAmount, at)
	return err
}

func (t *pgTx) LockOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOrder(ctx, t.tx, `id = $1`, id, true)
}

func (t *pgTx) LockOrderByNumber(ctx context.Context, number string) (*Order, error) {
	return getOrder(ctx, t.tx, `order_number = $1`, number, true)
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET
			status              = $2,
			payment_status      = $3,
			payment_method      = COALESCE($4, payment_method),
			paid_at             = COALESCE($5, paid_at),
			auto_cancelled_at   = COALESCE($6, auto_cancelled_at),
			cancellation_reason = COALESCE($7, cancellation_reason),
			updated_at          = $8
		WHERE id = $1`,
		id, string(upd.Status), string(upd.PaymentStatus), upd.PaymentMethod, upd.PaidAt,
		upd.AutoCancelledAt, upd.Reason, upd.At)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) DueOrders(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id FROM orders
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
