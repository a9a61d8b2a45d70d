package orders

import (
	"context"
	"github.com/google/uuid"
	"time"
)

func (t *pgTx) CountAvailable(ctx context.Context, productID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM premium_accounts
		WHERE product_id = $1 AND status = 'available'`, productID).Scan(&n)
	return n, err
}

// ReserveUnits: satu UPDATE bersyarat, paling banyak qty baris available yang disentuh.
// Baris yang sedang dikunci tx lain dilewati (SKIP LOCKED), jadi dua checkout tidak pernah
// mengambil baris yang sama. Caller membandingkan hasil (rows affected) dengan qty.
func (t *pgTx) ReserveUnits(ctx context.Context, orderID uuid.UUID, productID int64, qty int, at time.Time) (int, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE premium_accounts
		SET status = 'reserved', order_id = $1, reserved_at = $4, updated_at = $4
		WHERE id IN (
			SELECT id FROM premium_accounts
			WHERE product_id = $2 AND status = 'available'
			ORDER BY id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		) AND status = 'available'`, orderID, productID, qty, at)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// ReleaseUnits mengembalikan semua unit reserved milik order ke available.
func (t *pgTx) ReleaseUnits(ctx context.Context, orderID uuid.UUID, at time.Time) (int, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE premium_accounts
		SET status = 'available', order_id = NULL, reserved_at = NULL, updated_at = $2
		WHERE order_id = $1 AND status = 'reserved'`, orderID, at)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (t *pgTx) SellUnits(ctx context.Context, orderID uuid.UUID, at time.Time) (int, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE premium_accounts
		SET status = 'sold', sold_at = $2, updated_at = $2
		WHERE order_id = $1 AND status = 'reserved'`, orderID, at)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}
