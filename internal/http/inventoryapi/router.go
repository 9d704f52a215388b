package inventoryapi

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

	r.Route("/api/inventory", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/adjust", h.Adjust)
		r.Get("/search", h.Search)
		r.Get("/{productId}", h.Get)
		r.Put("/{productId}", h.Upsert)
		r.Delete("/{productId}", h.Delete)
	})

	return r
}
