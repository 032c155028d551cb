package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/travel-bookings/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/travel-bookings/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/travel-bookings/internal/adapters/redis"
	"github.com/robertarktes/travel-bookings/internal/checkout"
	"github.com/robertarktes/travel-bookings/internal/config"
	"github.com/robertarktes/travel-bookings/internal/domain"
	"github.com/robertarktes/travel-bookings/internal/observability"
)

const packageCacheTTL = 5 * time.Minute

type Handlers struct {
	cfg          *config.Config
	repo         *crdb.Repository
	catalog      *mongoadapter.CatalogRepository
	notes        *mongoadapter.NotificationStore
	cache        *redisadapter.Cache
	idemp        *redisadapter.Idempotency
	orchestrator *checkout.Orchestrator
	logger       observability.Logger
}

func NewHandlers(cfg *config.Config, repo *crdb.Repository, catalog *mongoadapter.CatalogRepository, notes *mongoadapter.NotificationStore, cache *redisadapter.Cache, idemp *redisadapter.Idempotency, orchestrator *checkout.Orchestrator, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:          cfg,
		repo:         repo,
		catalog:      catalog,
		notes:        notes,
		cache:        cache,
		idemp:        idemp,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// callerID prefers the authenticated subject; the body field only counts when
// JWT verification is disabled.
func (h *Handlers) callerID(r *http.Request, bodyUserID uuid.UUID) (uuid.UUID, bool) {
	if id, ok := UserIDFromContext(r.Context()); ok {
		return id, true
	}
	if h.cfg.JWTSecret == "" && bodyUserID != uuid.Nil {
		return bodyUserID, true
	}
	return uuid.Nil, false
}

func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      uuid.UUID `json:"user_id"`
		PackageID   uuid.UUID `json:"package_id"`
		DepartureID uuid.UUID `json:"departure_id"`
		Adults      int       `json:"adults"`
		Children    int       `json:"children"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID, ok := h.callerID(r, req.UserID)
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}
	if req.Adults+req.Children <= 0 {
		http.Error(w, "no travelers", http.StatusUnprocessableEntity)
		return
	}

	pkg, err := h.catalog.GetPackage(r.Context(), req.PackageID)
	if err != nil {
		h.writeError(w, errors.Wrap(err, "package"))
		return
	}
	dep, err := h.repo.GetDeparture(r.Context(), req.DepartureID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	item := domain.NewCartItem(*pkg, dep.ID, dep.StartDate, req.Adults, req.Children)
	cart, err := h.repo.AddCartItem(r.Context(), userID, item)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"cart_id":      cart.ID,
		"item_id":      item.ID,
		"totalAmount":  cart.TotalAmount,
		"finalAmount":  cart.FinalAmount,
		"cartItemIds":  cart.ItemIDs,
	})
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(r, uuid.Nil)
	if !ok {
		if id, err := uuid.Parse(r.URL.Query().Get("user_id")); err == nil && h.cfg.JWTSecret == "" {
			userID = id
		} else {
			http.Error(w, "missing user", http.StatusUnauthorized)
			return
		}
	}

	cart, items, err := h.repo.GetCart(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cart_id":     cart.ID,
		"totalAmount": cart.TotalAmount,
		"finalAmount": cart.FinalAmount,
		"items":       items,
	})
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	cartID, itemID, ok := cartItemParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Adults   int `json:"adults"`
		Children int `json:"children"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Adults+req.Children <= 0 {
		http.Error(w, "no travelers", http.StatusUnprocessableEntity)
		return
	}

	if err := h.repo.UpdateCartItem(r.Context(), cartID, itemID, req.Adults, req.Children); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cartID, itemID, ok := cartItemParams(w, r)
	if !ok {
		return
	}
	if err := h.repo.RemoveCartItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		UserID        uuid.UUID   `json:"user_id"`
		CartID        uuid.UUID   `json:"cart_id"`
		ItemIDs       []uuid.UUID `json:"item_ids"`
		PackageID     uuid.UUID   `json:"package_id"`
		DepartureID   uuid.UUID   `json:"departure_id"`
		Adults        int         `json:"adults"`
		Children      int         `json:"children"`
		PaymentMethod string      `json:"payment_method"`
		Card          struct {
			Number string `json:"number"`
			CVC    string `json:"cvc"`
			Expiry string `json:"expiry"`
		} `json:"card"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID, ok := h.callerID(r, req.UserID)
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}

	result, err := h.orchestrator.Checkout(r.Context(), checkout.Request{
		UserID:      userID,
		CartID:      req.CartID,
		ItemIDs:     req.ItemIDs,
		PackageID:   req.PackageID,
		DepartureID: req.DepartureID,
		Adults:      req.Adults,
		Children:    req.Children,
		Method:      req.PaymentMethod,
		Card: checkout.Card{
			Number: req.Card.Number,
			CVC:    req.Card.CVC,
			Expiry: req.Card.Expiry,
		},
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	data, _ := json.Marshal(map[string]interface{}{
		"payment_id":  result.PaymentID,
		"booking_ids": result.BookingIDs,
		"totalAmount": result.Total,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	if err := h.idemp.Set(r.Context(), key, redisadapter.IdempResponse{Status: http.StatusCreated, Result: data}); err != nil {
		h.logger.Error("failed to store idempotent response", err)
	}
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	booking, err := h.repo.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.repo.CancelBooking(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.repo.CompleteBooking(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteBooking(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	payment, err := h.repo.GetPayment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *Handlers) ListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.catalog.ListPackages(r.Context(), 50)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkgs)
}

func (h *Handlers) GetPackage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var cached domain.TravelPackage
	hit, err := h.cache.GetPackage(r.Context(), id.String(), &cached)
	if err != nil {
		h.logger.Debug("package cache read failed", err)
	}
	if hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	pkg, err := h.catalog.GetPackage(r.Context(), id)
	if err != nil {
		h.writeError(w, errors.Wrap(err, "package"))
		return
	}
	if err := h.cache.SetPackage(r.Context(), id.String(), pkg, packageCacheTTL); err != nil {
		h.logger.Debug("package cache write failed", err)
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(r, uuid.Nil)
	if !ok {
		if id, err := uuid.Parse(r.URL.Query().Get("user_id")); err == nil && h.cfg.JWTSecret == "" {
			userID = id
		} else {
			http.Error(w, "missing user", http.StatusUnauthorized)
			return
		}
	}
	docs, err := h.notes.ListForUser(r.Context(), userID, 50)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func cartItemParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	cartID, err := uuid.Parse(chi.URLParam(r, "cartID"))
	if err != nil {
		http.Error(w, "invalid cart id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		http.Error(w, "invalid item id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return cartID, itemID, true
}

// writeError maps the domain taxonomy to short, displayable messages; raw
// store errors stay server-side.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingCheckoutContext):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrRefundIssued):
		http.Error(w, domain.ErrRefundIssued.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrCapacityExceeded):
		http.Error(w, domain.ErrCapacityExceeded.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrPaymentDeclined):
		http.Error(w, domain.ErrPaymentDeclined.Error(), http.StatusPaymentRequired)
	case errors.Is(err, domain.ErrPaymentInit):
		http.Error(w, domain.ErrPaymentInit.Error(), http.StatusBadGateway)
	case errors.Is(err, domain.ErrTxContention):
		http.Error(w, domain.ErrTxContention.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrIllegalTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("request failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
