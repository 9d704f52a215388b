// Package cartapi exposes the cart service over HTTP.
package cartapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/duck-emporium/internal/cart"
	"github.com/andreasstove999/duck-emporium/internal/http/middleware"
	"github.com/andreasstove999/duck-emporium/internal/logging"
	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

type Service interface {
	Get(ctx context.Context, ownerID int) (reconcile.Cart, error)
	Replace(ctx context.Context, c reconcile.Cart) (reconcile.Cart, error)
	AddItem(ctx context.Context, ownerID, productID, quantity int) (reconcile.Cart, error)
	RemoveItem(ctx context.Context, ownerID, productID, quantity int) (reconcile.Cart, error)
	RemoveProduct(ctx context.Context, ownerID, productID int) (reconcile.Cart, error)
	Clear(ctx context.Context, ownerID int) (reconcile.Cart, error)
	Validate(ctx context.Context, ownerID int) (cart.Validation, error)
	Checkout(ctx context.Context, ownerID int) (cart.Receipt, error)
}

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logging.OrNop(logger)}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "cart-service"})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerId")
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), ownerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, c)
}

type replaceRequest struct {
	Items map[int]int `json:"items"`
}

func (h *Handler) ReplaceCart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerId")
	if !ok {
		return
	}
	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	c, err := h.svc.Replace(r.Context(), reconcile.Cart{OwnerID: ownerID, Items: req.Items})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, c)
}

type addItemRequest struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerId")
	if !ok {
		return
	}
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID <= 0 {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid productId")
		return
	}
	c, err := h.svc.AddItem(r.Context(), ownerID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, c)
}

// RemoveItem removes ?quantity=N units of a product, or the whole entry when
// quantity is omitted.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerId")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productId")
	if !ok {
		return
	}

	var (
		c   reconcile.Cart
		err error
	)
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		qty, convErr := strconv.Atoi(raw)
		if convErr != nil {
			middleware.WriteError(w, r, http.StatusBadRequest, "invalid quantity")
			return
		}
		c, err = h.svc.RemoveItem(r.Context(), ownerID, productID, qty)
	} else {
		c, err = h.svc.RemoveProduct(r.Context(), ownerID, productID)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerId")
	if !ok {
		return
	}
	c, err := h.svc.Clear(r.Context(), ownerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerId")
	if !ok {
		return
	}
	v, err := h.svc.Validate(r.Context(), ownerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(w, r, "ownerId")
	if !ok {
		return
	}
	receipt, err := h.svc.Checkout(r.Context(), ownerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, receipt)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

type insufficientQuantityResponse struct {
	middleware.ErrorResponse
	ProductID int `json:"productId"`
	Current   int `json:"current"`
	Requested int `json:"requested"`
}

type cartChangedResponse struct {
	middleware.ErrorResponse
	Cart     reconcile.Cart      `json:"cart"`
	Warnings []reconcile.Warning `json:"warnings"`
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	cid := middleware.GetCorrelationID(r.Context())

	var insufficient *reconcile.InsufficientQuantityError
	var changed *cart.CartChangedError

	switch {
	case errors.As(err, &insufficient):
		middleware.WriteJSON(w, http.StatusConflict, insufficientQuantityResponse{
			ErrorResponse: middleware.ErrorResponse{Error: err.Error(), CorrelationID: cid},
			ProductID:     insufficient.ProductID,
			Current:       insufficient.Current,
			Requested:     insufficient.Requested,
		})
	case errors.As(err, &changed):
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, cartChangedResponse{
			ErrorResponse: middleware.ErrorResponse{Error: "cart changed, review before checkout", CorrelationID: cid},
			Cart:          changed.Cart,
			Warnings:      changed.Outcome.Warnings,
		})
	case errors.Is(err, reconcile.ErrInvalidArgument):
		middleware.WriteError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, reconcile.ErrProductNotFound):
		middleware.WriteError(w, r, http.StatusNotFound, "product not found")
	case errors.Is(err, cart.ErrEmptyCart):
		middleware.WriteError(w, r, http.StatusUnprocessableEntity, "cart is empty")
	case errors.Is(err, cart.ErrInventoryUnavailable):
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "inventory unavailable, try again later")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Info("request abandoned", zap.String("path", r.URL.Path), zap.String("correlation_id", cid), zap.Error(err))
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.logger.Error("cart request failed",
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", cid),
			zap.Error(err),
		)
		middleware.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}
