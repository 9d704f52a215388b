// Package inventoryapi exposes the inventory service over HTTP.
package inventoryapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/duck-emporium/internal/http/middleware"
	"github.com/andreasstove999/duck-emporium/internal/inventory"
	"github.com/andreasstove999/duck-emporium/internal/logging"
)

type Handler struct {
	repo   inventory.Repository
	logger *zap.Logger
}

func NewHandler(repo inventory.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logging.OrNop(logger)}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "inventory-service"})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.List(r.Context())
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, products)
}

// Search lists products whose name contains the name query parameter.
// A missing parameter lists everything.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.Search(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, products)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	p, err := h.repo.Get(r.Context(), productID)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var p inventory.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	p.ID = 0
	created, err := h.repo.Create(r.Context(), p)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// Upsert stores the product under the id in the path; a body id is ignored.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var p inventory.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	p.ID = productID
	saved, err := h.repo.Upsert(r.Context(), p)
	if err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, saved)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), productID); err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustRequest struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID <= 0 || req.Quantity < 0 {
		middleware.WriteError(w, r, http.StatusBadRequest, "productId must be positive and quantity non-negative")
		return
	}

	if err := h.repo.SetQuantity(r.Context(), req.ProductID, req.Quantity); err != nil {
		h.writeRepoError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "productId"))
	if err != nil || id <= 0 {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid productId")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeRepoError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		middleware.WriteError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, inventory.ErrInvalidProduct):
		middleware.WriteError(w, r, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("inventory request failed",
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		middleware.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}
