// Package api serves the restock ledger over JSON HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/safar/koloa-ledger/internal/authz"
	"github.com/safar/koloa-ledger/internal/config"
	"github.com/safar/koloa-ledger/internal/metrics"
	"github.com/safar/koloa-ledger/internal/models"
	"github.com/safar/koloa-ledger/internal/store"
)

// Backend is the persistence surface the handlers need. *store.Store
// implements it.
type Backend interface {
	Ping(ctx context.Context) error

	CreateOrder(ctx context.Context, req store.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, filter store.OrderFilter, cursor string, limit int) (*store.CursorPage, error)
	ConfirmOrder(ctx context.Context, orderID int64, notes string) (*models.Order, []models.StockUpdate, error)
	ReceiveOrderItem(ctx context.Context, orderID, itemID int64, quantity int, notes string) (*models.OrderItem, *models.Order, *models.StockUpdate, error)
	CancelOrder(ctx context.Context, orderID int64, reason string) (*models.Order, error)

	CreateProduct(ctx context.Context, req store.CreateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	ListLowStockProducts(ctx context.Context, brand string) ([]models.Product, error)

	CreateUser(ctx context.Context, name, role string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Backend Backend
	Logger  *slog.Logger
	Config  *config.Config
	Metrics *metrics.Metrics
	Policy  *authz.Policy
}

// NewRouter mounts every endpoint behind the shared middleware stack.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := params.Policy
	if policy == nil {
		policy = authz.DefaultPolicy()
	}

	h := &handler{
		backend:  params.Backend,
		logger:   logger,
		metrics:  params.Metrics,
		validate: newValidator(),
	}
	guard := authz.Middleware{Users: params.Backend, Policy: policy, Logger: logger}

	r := chi.NewRouter()
	for _, mw := range middlewareStack(params.Config, logger, params.Metrics) {
		r.Use(mw)
	}

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/orders", func(r chi.Router) {
		r.With(guard.Require(authz.ActionCreate, authz.ResourceOrders)).Post("/", h.createOrder)
		r.With(guard.Require(authz.ActionRead, authz.ResourceOrders)).Get("/", h.listOrders)
		r.With(guard.Require(authz.ActionRead, authz.ResourceOrders)).Get("/{id}", h.getOrder)
		r.With(guard.Require(authz.ActionConfirm, authz.ResourceOrders)).Put("/{id}/confirm", h.confirmOrder)
		r.With(guard.Require(authz.ActionReceive, authz.ResourceOrders)).Put("/{id}/items/{itemId}/receive", h.receiveOrderItem)
		r.With(guard.Require(authz.ActionCancel, authz.ResourceOrders)).Put("/{id}/cancel", h.cancelOrder)
	})

	r.Route("/products", func(r chi.Router) {
		r.With(guard.Require(authz.ActionWrite, authz.ResourceProducts)).Post("/", h.createProduct)
		r.With(guard.Require(authz.ActionRead, authz.ResourceProducts)).Get("/", h.listProducts)
		r.With(guard.Require(authz.ActionRead, authz.ResourceProducts)).Get("/low-stock", h.listLowStockProducts)
		r.With(guard.Require(authz.ActionRead, authz.ResourceProducts)).Get("/{id}", h.getProduct)
	})

	r.Route("/users", func(r chi.Router) {
		r.With(guard.Require(authz.ActionWrite, authz.ResourceUsers)).Post("/", h.createUser)
		r.With(guard.Require(authz.ActionRead, authz.ResourceUsers)).Get("/", h.listUsers)
		r.With(guard.Require(authz.ActionRead, authz.ResourceUsers)).Get("/{id}", h.getUser)
	})

	return r
}

func middlewareStack(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
		SSLRedirect:        cfg.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	rateLimit := 0
	if cfg != nil {
		if cfg.Server.RequestTimeout > 0 {
			timeout = cfg.Server.RequestTimeout
		}
		rateLimit = cfg.Server.RateLimit
	}

	middlewares := []func(http.Handler) http.Handler{
		chimw.RealIP,
		chimw.RequestID,
		accessLog(logger),
		chimw.Recoverer,
		chimw.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					return
				}
				next.ServeHTTP(w, r)
			})
		},
	}
	if rateLimit > 0 {
		middlewares = append(middlewares, httprate.Limit(rateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}
	if m != nil {
		middlewares = append(middlewares, m.Middleware)
	}
	return middlewares
}

// accessLog writes one line per request once the response is complete.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
