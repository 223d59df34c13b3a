package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alxsaunders/futuremove-shop/internal/domain"
	"github.com/alxsaunders/futuremove-shop/internal/handler/mw"
	"github.com/alxsaunders/futuremove-shop/internal/usecase"
)

type Handler struct {
	service *usecase.Service
}

func NewHandler(service *usecase.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(mw.JWTAuthMiddleware)
		r.Get("/items", h.listItems)
		r.Get("/items/{itemId}", h.getItem)
		r.Get("/items/user/{userId}", h.listUserItems)
		r.Get("/items/coins/{userId}", h.getCoins)
		r.Put("/items/coins/{userId}", h.adjustCoins)
		r.Post("/items/purchase/{userId}/{itemId}", h.purchase)
		r.Put("/items/toggle/{userId}/{itemId}", h.toggleEquip)
	})
}

type itemResponse struct {
	ItemID      int    `json:"itemId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       int    `json:"price"`
}

type ownedItemResponse struct {
	itemResponse
	Equipped   bool      `json:"equipped"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

type coinsResponse struct {
	FutureCoins int `json:"futureCoins"`
}

type mutationResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	FutureCoins *int   `json:"futureCoins,omitempty"`
	Equipped    *bool  `json:"equipped,omitempty"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	res := make([]itemResponse, 0, len(items))
	for _, it := range items {
		res = append(res, itemResponse{
			ItemID:      it.ID,
			Name:        it.Name,
			Description: it.Description,
			Category:    it.Category,
			Price:       it.Price,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathItemID(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	if item == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"errors": domain.ErrItemNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{
		ItemID:      item.ID,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price,
	})
}

func (h *Handler) listUserItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerUserID(w, r)
	if !ok {
		return
	}
	owned, err := h.service.ListUserItems(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	res := make([]ownedItemResponse, 0, len(owned))
	for _, oi := range owned {
		res = append(res, ownedItemResponse{
			itemResponse: itemResponse{
				ItemID:      oi.ID,
				Name:        oi.Name,
				Description: oi.Description,
				Category:    oi.Category,
				Price:       oi.Price,
			},
			Equipped:   oi.Equipped,
			AcquiredAt: oi.AcquiredAt,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getCoins(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerUserID(w, r)
	if !ok {
		return
	}
	coins, err := h.service.GetCoins(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coinsResponse{FutureCoins: coins})
}

type adjustCoinsRequest struct {
	Amount int `json:"amount"`
}

func (h *Handler) adjustCoins(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerUserID(w, r)
	if !ok {
		return
	}
	var req adjustCoinsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Success: false, Message: "bad request body"})
		return
	}
	coins, err := h.service.AdjustCoins(r.Context(), userID, req.Amount)
	if err != nil && !isRejection(err) {
		// one retry on transient store errors
		coins, err = h.service.AdjustCoins(r.Context(), userID, req.Amount)
	}
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Success: true, Message: "balance updated", FutureCoins: &coins})
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerUserID(w, r)
	if !ok {
		return
	}
	itemID, ok := pathItemID(w, r)
	if !ok {
		return
	}
	coins, err := h.service.Purchase(r.Context(), userID, itemID)
	if err != nil && !isRejection(err) {
		coins, err = h.service.Purchase(r.Context(), userID, itemID)
	}
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Success: true, Message: "purchase successful", FutureCoins: &coins})
}

func (h *Handler) toggleEquip(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerUserID(w, r)
	if !ok {
		return
	}
	itemID, ok := pathItemID(w, r)
	if !ok {
		return
	}
	equipped, err := h.service.ToggleEquip(r.Context(), userID, itemID)
	if err != nil && !isRejection(err) {
		equipped, err = h.service.ToggleEquip(r.Context(), userID, itemID)
	}
	if err != nil {
		writeRejection(w, err)
		return
	}
	msg := "item unequipped"
	if equipped {
		msg = "item equipped"
	}
	writeJSON(w, http.StatusOK, mutationResponse{Success: true, Message: msg, Equipped: &equipped})
}

// callerUserID resolves the {userId} path segment and rejects callers acting
// on an account other than their own.
func callerUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Success: false, Message: "user id is required"})
		return "", false
	}
	if userID != mw.MustGetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, mutationResponse{Success: false, Message: "forbidden"})
		return "", false
	}
	return userID, true
}

func pathItemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "itemId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Success: false, Message: "item id must be an integer"})
		return 0, false
	}
	return itemID, true
}

// isRejection reports whether err is an expected business outcome rather
// than a transient store failure.
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrItemNotFound) ||
		errors.Is(err, domain.ErrNotOwned) ||
		errors.Is(err, domain.ErrAlreadyOwned) ||
		errors.Is(err, domain.ErrInsufficientFunds)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrNotOwned):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyOwned):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeRejection(w http.ResponseWriter, err error) {
	msg := err.Error()
	if !isRejection(err) {
		msg = "internal error"
	}
	writeJSON(w, statusFor(err), mutationResponse{Success: false, Message: msg})
}

func writeError(w http.ResponseWriter, err error) {
	if isRejection(err) {
		writeJSON(w, statusFor(err), map[string]string{"errors": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"errors": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
