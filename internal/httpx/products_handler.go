package httpx

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-premium-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"time"
)

type StockReader interface {
	Available(ctx context.Context, productID int64) (int, error)
}

type ProductsHandler struct {
	Stock StockReader
	Log   *zap.Logger
	Dev   bool
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.With(RequireActor).Get("/api/products/{id}/stock", h.stock)
}

type stockResp struct {
	Success   bool  `json:"success"`
	ProductID int64 `json:"product_id"`
	Available int   `json:"available"`
}

func (h *ProductsHandler) stock(w http.ResponseWriter, r *http.Request) {
	rs := responder{log: h.Log, dev: h.Dev}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		rs.fail(w, r, fmt.Errorf("%w: invalid product id", orders.ErrInvalidRequest))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Stock.Available(ctx, id)
	if errors.Is(err, orders.ErrProductNotFound) {
		// di endpoint baca, produk tak dikenal = 404 biasa
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "PRODUCT_NOT_FOUND"})
		return
	}
	if err != nil {
		rs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResp{Success: true, ProductID: id, Available: n})
}
