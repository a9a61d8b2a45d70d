package httpx

import (
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-premium-orders/internal/orders"
	"github.com/ariefcatur/go-premium-orders/internal/redisx"
	"go.uber.org/zap"
	"net/http"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus memetakan error domain ke HTTP. Pelanggaran aturan bisnis
// saat checkout (stok, produk, gateway) tetap 500 sesuai kontrak client lama.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, orders.ErrNotCancellable):
		return http.StatusBadRequest, "NOT_CANCELLABLE"
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound, "ORDER_NOT_FOUND"
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, redisx.ErrInFlight):
		return http.StatusConflict, "IDEMPOTENCY_IN_FLIGHT"
	case errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusInternalServerError, "INSUFFICIENT_STOCK"
	case errors.Is(err, orders.ErrReservationShortfall):
		return http.StatusInternalServerError, "RESERVATION_SHORTFALL"
	case errors.Is(err, orders.ErrProductNotFound):
		return http.StatusInternalServerError, "PRODUCT_NOT_FOUND"
	case errors.Is(err, orders.ErrInvoice):
		return http.StatusInternalServerError, "INVOICE_FAILED"
	case errors.Is(err, orders.ErrOrderNumberTaken):
		return http.StatusInternalServerError, "ORDER_NUMBER_TAKEN"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// responder menulis envelope error. Detail chain error hanya keluar di development.
type responder struct {
	log *zap.Logger
	dev bool
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, errCode := errorStatus(err)
	body := errorBody{Error: err.Error(), Code: errCode}
	if errCode == "INTERNAL" {
		body.Error = "internal server error"
	}
	if rs.dev {
		body.Details = err.Error()
	}
	fields := []zap.Field{zap.String("path", r.URL.Path), zap.String("code", errCode), zap.Error(err)}
	switch {
	case orders.IsBusinessError(err):
		// stok habis dsb. bukan insiden
		rs.log.Warn("request rejected", fields...)
	case code >= http.StatusInternalServerError:
		rs.log.Error("request failed", fields...)
	}
	writeJSON(w, code, body)
}
