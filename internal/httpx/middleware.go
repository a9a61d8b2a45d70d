package httpx

import (
	"context"
	"github.com/ariefcatur/go-premium-orders/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"net/http"
	"strings"
	"time"
)

// Header yang diisi API gateway setelah autentikasi.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"
)

type actorKey struct{}

// RequireActor menolak request tanpa X-User-ID (401).
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if uid == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Code: "UNAUTHORIZED"})
			return
		}
		role := orders.RoleUser
		if strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderUserRole)), string(orders.RoleReseller)) {
			role = orders.RoleReseller
		}
		actor := orders.Actor{UserID: uid, Role: role, Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail))}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func ActorFrom(ctx context.Context) (orders.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(orders.Actor)
	return a, ok
}

// traceContext meneruskan request id ke event Kafka sebagai trace_id.
func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(orders.WithTraceID(r.Context(), id)))
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
