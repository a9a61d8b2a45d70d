package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-premium-orders/internal/orders"
	"github.com/ariefcatur/go-premium-orders/internal/payment"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
)

const HeaderCallbackToken = "X-Callback-Token"

type CallbackProcessor interface {
	HandlePaymentCallback(ctx context.Context, cb payment.Callback) (*orders.CallbackResult, error)
}

// PaymentsHandler menerima webhook invoice dari gateway; tidak pakai header actor.
type PaymentsHandler struct {
	Orders CallbackProcessor
	Token  string
	Log    *zap.Logger
	Dev    bool
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/api/payments/callback", h.callback)
}

type callbackResp struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
	Ignored bool   `json:"ignored"`
}

func (h *PaymentsHandler) callback(w http.ResponseWriter, r *http.Request) {
	if !payment.VerifyToken(r.Header.Get(HeaderCallbackToken), h.Token) {
		h.Log.Warn("payment callback with invalid token", zap.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid callback token", Code: "UNAUTHORIZED"})
		return
	}
	rs := responder{log: h.Log, dev: h.Dev}

	var cb payment.Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		rs.fail(w, r, fmt.Errorf("%w: invalid json", orders.ErrInvalidRequest))
		return
	}
	res, err := h.Orders.HandlePaymentCallback(r.Context(), cb)
	if err != nil {
		rs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, callbackResp{Success: true, OrderID: res.OrderID.String(), Ignored: res.Ignored})
}
