package cartapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/andreasstove999/duck-emporium/internal/http/middleware"
	"github.com/andreasstove999/duck-emporium/internal/logging"
)

func NewRouter(h *Handler, logger *zap.Logger, allowOrigins []string) http.Handler {
	logger = logging.OrNop(logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(allowOrigins))

	r.Get("/health", h.Health)

	r.Route("/api/cart/{ownerId}", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Put("/", h.ReplaceCart)
		r.Post("/items", h.AddItem)
		r.Delete("/items", h.ClearCart)
		r.Delete("/items/{productId}", h.RemoveItem)
		r.Get("/validate", h.Validate)
		r.Post("/checkout", h.Checkout)
	})

	return r
}
