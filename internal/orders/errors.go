package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest       = errors.New("invalid order request")
	ErrProductNotFound      = errors.New("product not found or inactive")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrReservationShortfall = errors.New("reservation shortfall")
	ErrInvoice              = errors.New("payment gateway failed to create invoice")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotCancellable       = errors.New("order cannot be cancelled")
	ErrOrderNumberTaken     = errors.New("order number already exists")
	ErrInvalidTransition    = errors.New("invalid order status transition")
)

// StockError menyebut item yang kurang. Err = ErrInsufficientStock (cek awal)
// atau ErrReservationShortfall (kalah race saat reserve).
type StockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
	Err         error
}

func (e *StockError) Shortfall() int { return e.Requested - e.Available }

func (e *StockError) Error() string {
	return fmt.Sprintf("%v for %q (product %d): requested %d, available %d, short by %d",
		e.Err, e.ProductName, e.ProductID, e.Requested, e.Available, e.Shortfall())
}

func (e *StockError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
