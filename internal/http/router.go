package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Deps struct {
	Cart    CartService
	Orders  OrderService
	Catalog CatalogService

	// Ping reports database health; nil skips the check.
	Ping   func(ctx context.Context) error
	Logger *zap.Logger

	RequestTimeout   time.Duration
	CORSAllowOrigins []string
	AdminToken       string
}

func NewRouter(d Deps) http.Handler {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationID)
	r.Use(RequestLogger(h.logger))
	r.Use(Recover(h.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", HeaderCorrelationID, HeaderUserID, HeaderAdminToken, "Idempotency-Key"},
		ExposedHeaders:   []string{HeaderCorrelationID},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productId}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(RequireUserID)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddItem)
				r.Patch("/items/{lineId}", h.UpdateItem)
				r.Delete("/items/{lineId}", h.RemoveItem)
			})

			r.Post("/checkout", h.Checkout)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{orderId}", h.GetOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(d.AdminToken))
			r.Put("/products/{productId}", h.SaveProduct)
			r.Delete("/products/{productId}", h.DeleteProduct)
			r.Patch("/orders/{orderId}/status", h.UpdateOrderStatus)
		})
	})

	return r
}
