// Package handler содержит HTTP-обработчики API сервиса ценообразования.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-pricing/internal/engine"
	"github.com/mmeshcher/storefront-pricing/internal/middleware"
	"github.com/mmeshcher/storefront-pricing/internal/model"
	"github.com/mmeshcher/storefront-pricing/internal/repository"
	"github.com/mmeshcher/storefront-pricing/internal/service"
	"github.com/mmeshcher/storefront-pricing/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	QuoteCart(ctx context.Context, userID int64, items []model.CartLineItem, deliveryActive *bool, selectedBonus decimal.Decimal) (*model.Proposal, error)
	PlaceOrder(ctx context.Context, userID int64, number string, items []model.CartLineItem, deliveryActive *bool, selectedBonus, proposedTotal decimal.Decimal) (*model.Proposal, error)
	GetLoyaltyState(ctx context.Context, userID int64) (*model.UserLoyaltyState, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.PlacedOrder, error)
	RollupProcurement(ctx context.Context, items []model.ProcurementLineItem) (*engine.Rollup, error)
	CurrentRate(ctx context.Context) (*model.ExchangeRate, error)
}

// Handler реализует HTTP-обработчики API сервиса ценообразования.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || err.Error() == "invalid credentials" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// GetRate возвращает действующий курс запрошенной валюты.
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	currency := currencyParam(r)

	rate, err := h.service.CurrentRate(r.Context())
	if err != nil {
		h.logger.Error("get rate error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if currency != "" && currency != rate.Currency {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	writeJSON(w, h.logger, rate)
}

type quoteRequest struct {
	Items          []model.CartLineItem `json:"items"`
	DeliveryActive *bool                `json:"delivery_active,omitempty"`
	RedeemedBonus  decimal.Decimal      `json:"redeemed_bonus"`
}

func validCartItems(items []model.CartLineItem) bool {
	for _, it := range items {
		if it.Quantity < 1 || it.UnitPrice.IsNegative() {
			return false
		}
	}
	return true
}

// QuoteCart пересчитывает корзину текущего пользователя и возвращает предложение.
func (h *Handler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validCartItems(req.Items) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	quote, err := h.service.QuoteCart(r.Context(), userID, req.Items, req.DeliveryActive, req.RedeemedBonus)
	if err != nil {
		h.logger.Error("quote cart error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, quote)
}

type placeOrderRequest struct {
	Order          string               `json:"order"`
	Items          []model.CartLineItem `json:"items"`
	DeliveryActive *bool                `json:"delivery_active,omitempty"`
	RedeemedBonus  decimal.Decimal      `json:"redeemed_bonus"`
	FinalTotal     decimal.Decimal      `json:"final_total"`
}

// PlaceOrder фиксирует заказ по присланному предложению. Если предложение
// устарело, клиент получает 409 со свежим расчётом и должен подтвердить
// заказ заново — итог никогда не меняется молча.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidOrderNumber(req.Order) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	if len(req.Items) == 0 || !validCartItems(req.Items) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	quote, err := h.service.PlaceOrder(r.Context(), userID, req.Order, req.Items, req.DeliveryActive, req.RedeemedBonus, req.FinalTotal)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStaleProposal):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			if encErr := json.NewEncoder(w).Encode(quote); encErr != nil {
				h.logger.Error("encode requote error", zap.Error(encErr))
			}
		case errors.Is(err, repository.ErrOrderExists):
			w.WriteHeader(http.StatusOK)
		case errors.Is(err, repository.ErrOrderOwnedByAnother):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("place order error", zap.Error(err), zap.Int64("userID", userID), zap.String("order", req.Order))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, h.logger, quote)
}

type tierResponse struct {
	Title          string          `json:"title"`
	OrderThreshold int             `json:"order_threshold"`
	BonusPercent   decimal.Decimal `json:"bonus_percent"`
}

type loyaltyResponse struct {
	BonusBalance decimal.Decimal `json:"bonus_balance"`
	OrderCount   int             `json:"order_count"`
	CurrentTier  *tierResponse   `json:"current_tier"`
	NextTier     *tierResponse   `json:"next_tier"`
	OrdersToNext int             `json:"orders_to_next,omitempty"`
}

func tierToResponse(t *model.LoyaltyTier) *tierResponse {
	if t == nil {
		return nil
	}
	return &tierResponse{
		Title:          t.Title,
		OrderThreshold: t.OrderThreshold,
		BonusPercent:   t.BonusPercent,
	}
}

// GetLoyalty возвращает состояние лояльности текущего пользователя.
// Отсутствие уровня передаётся как null, а не как нижний уровень.
func (h *Handler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	state, err := h.service.GetLoyaltyState(r.Context(), userID)
	if err != nil {
		h.logger.Error("get loyalty error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, loyaltyResponse{
		BonusBalance: state.BonusBalance,
		OrderCount:   state.OrderCount,
		CurrentTier:  tierToResponse(state.Current),
		NextTier:     tierToResponse(state.Next),
		OrdersToNext: state.OrdersToNext,
	})
}

type rollupRequest struct {
	Items []model.ProcurementLineItem `json:"items"`
}

// RollupProcurement считает стоимость закупки в обеих валютах.
func (h *Handler) RollupProcurement(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req rollupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	for _, it := range req.Items {
		if it.Quantity < 1 || it.UnitCostBase.IsNegative() {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
	}

	rollup, err := h.service.RollupProcurement(r.Context(), req.Items)
	if err != nil {
		h.logger.Error("procurement rollup error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, rollup)
}

type orderResponse struct {
	Number   string          `json:"number"`
	Total    decimal.Decimal `json:"total"`
	Redeemed decimal.Decimal `json:"redeemed_bonus"`
	Cashback decimal.Decimal `json:"cashback"`
	PlacedAt string          `json:"placed_at"`
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse{
			Number:   o.Number,
			Total:    o.Total,
			Redeemed: o.Redeemed,
			Cashback: o.Cashback,
			PlacedAt: o.PlacedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, h.logger, resp)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response error", zap.Error(err))
	}
}
