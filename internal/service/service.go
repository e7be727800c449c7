// Package service реализует бизнес-логику сервиса ценообразования и лояльности.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-pricing/internal/engine"
	"github.com/mmeshcher/storefront-pricing/internal/model"
	"github.com/mmeshcher/storefront-pricing/internal/repository"
	"github.com/mmeshcher/storefront-pricing/internal/validation"
)

// ErrStaleProposal возвращается, когда предложение клиента разошлось с
// пересчитанным на сервере: итог нужно перепоказать пользователю и
// получить подтверждение заново.
var ErrStaleProposal = errors.New("proposal is stale")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetPolicy(ctx context.Context) (*model.PricingPolicy, error)
	GetTiers(ctx context.Context) ([]model.LoyaltyTier, error)
	GetLoyaltyState(ctx context.Context, userID int64) (int64, int, error)
	PlaceOrder(ctx context.Context, userID int64, number string, totalKop, redeemedKop, cashbackKop int64) error
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.PlacedOrder, error)
}

// RateProvider описывает контракт внешнего источника курсов валют.
type RateProvider interface {
	GetRate(ctx context.Context, currency string) (*model.ExchangeRate, error)
}

// Service содержит бизнес-логику сервиса ценообразования.
type Service struct {
	repo     Repository
	rates    RateProvider
	logger   *zap.Logger
	currency string

	mu       sync.RWMutex
	lastRate *model.ExchangeRate
}

// NewService создаёт новый сервис с указанным репозиторием и источником курсов.
func NewService(repo Repository, rates RateProvider, logger *zap.Logger, currency string) *Service {
	return &Service{
		repo:     repo,
		rates:    rates,
		logger:   logger,
		currency: currency,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

func toKopecks(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// QuoteCart пересчитывает корзину пользователя и возвращает предложение.
// Выбранное списание бонусов заново ограничивается текущим балансом и
// суммой корзины, поэтому итог предложения никогда не отрицателен.
// deliveryActive == nil означает, что пользователь выбор не делал — тогда
// доставка включается эвристикой "маленького заказа".
func (s *Service) QuoteCart(ctx context.Context, userID int64, items []model.CartLineItem, deliveryActive *bool, selectedBonus decimal.Decimal) (*model.Proposal, error) {
	policy, err := s.repo.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}

	tiers, err := s.repo.GetTiers(ctx)
	if err != nil {
		return nil, err
	}
	if !validation.IsValidTierTable(tiers) {
		return nil, engine.ErrInvalidPolicy
	}

	balanceKop, orderCount, err := s.repo.GetLoyaltyState(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance := decimal.New(balanceKop, -2)

	subtotal := engine.Subtotal(items)

	delivery := engine.AutoDelivery(items)
	if deliveryActive != nil {
		delivery = *deliveryActive
	}

	maxRedeem, err := engine.MaxRedeemable(balance, subtotal, policy.BonusThreshold, policy.BonusStep)
	if err != nil {
		return nil, err
	}
	redeemed := engine.ClampRedemption(selectedBonus, maxRedeem)

	totals, err := engine.ComputeCartTotals(items, delivery, policy.DeliveryPrice, redeemed)
	if err != nil {
		return nil, err
	}

	res := engine.ResolveTier(orderCount, tiers)

	cashback, err := engine.ProjectCashback(subtotal, res.Current, redeemed, policy.BonusThreshold, policy.CashbackRound)
	if err != nil {
		return nil, err
	}

	return &model.Proposal{
		ItemsSubtotal:     totals.ItemsSubtotal,
		DeliveryFee:       totals.DeliveryFee,
		DeliveryActive:    delivery,
		RedeemedBonus:     redeemed,
		MaxRedeemable:     maxRedeem,
		FinalTotal:        totals.FinalTotal,
		ProjectedCashback: cashback,
	}, nil
}

// PlaceOrder фиксирует заказ по предложению клиента. Предложение
// пересчитывается на сервере; если итог или списание разошлись с
// присланными, возвращается свежий расчёт вместе с ErrStaleProposal и
// заказ не создаётся. Репозиторий дополнительно сверяет списание с
// балансом под блокировкой — гонка двух корзин тоже даёт ErrStaleProposal.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, number string, items []model.CartLineItem, deliveryActive *bool, selectedBonus, proposedTotal decimal.Decimal) (*model.Proposal, error) {
	quote, err := s.QuoteCart(ctx, userID, items, deliveryActive, selectedBonus)
	if err != nil {
		return nil, err
	}

	if !quote.FinalTotal.Equal(proposedTotal) || !quote.RedeemedBonus.Equal(selectedBonus) {
		return quote, ErrStaleProposal
	}

	err = s.repo.PlaceOrder(ctx, userID, number,
		toKopecks(quote.FinalTotal),
		toKopecks(quote.RedeemedBonus),
		toKopecks(quote.ProjectedCashback),
	)
	if err != nil {
		if errors.Is(err, repository.ErrStaleRedemption) {
			requote, qerr := s.QuoteCart(ctx, userID, items, deliveryActive, selectedBonus)
			if qerr != nil {
				return nil, qerr
			}
			return requote, ErrStaleProposal
		}
		return nil, err
	}

	return quote, nil
}

// GetLoyaltyState возвращает состояние лояльности пользователя с
// разрешёнными уровнями.
func (s *Service) GetLoyaltyState(ctx context.Context, userID int64) (*model.UserLoyaltyState, error) {
	tiers, err := s.repo.GetTiers(ctx)
	if err != nil {
		return nil, err
	}
	if !validation.IsValidTierTable(tiers) {
		return nil, engine.ErrInvalidPolicy
	}

	balanceKop, orderCount, err := s.repo.GetLoyaltyState(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := engine.ResolveTier(orderCount, tiers)

	return &model.UserLoyaltyState{
		BonusBalance: decimal.New(balanceKop, -2),
		OrderCount:   orderCount,
		Current:      res.Current,
		Next:         res.Next,
		OrdersToNext: res.OrdersToNext,
	}, nil
}

// GetOrdersByUser возвращает оформленные заказы пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.PlacedOrder, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// RollupProcurement считает стоимость закупки по текущему курсу с буфером.
func (s *Service) RollupProcurement(ctx context.Context, items []model.ProcurementLineItem) (*engine.Rollup, error) {
	policy, err := s.repo.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}

	rate, err := s.CurrentRate(ctx)
	if err != nil {
		return nil, err
	}

	return engine.RollupProcurement(items, rate.Rate, policy.RateBuffer)
}

// CurrentRate возвращает действующий курс. Первый вызов (или вызов до
// первого успешного обновления) тянет курс у провайдера; при его
// недоступности используется курс по умолчанию из политики с пометкой
// Fallback.
func (s *Service) CurrentRate(ctx context.Context) (*model.ExchangeRate, error) {
	s.mu.RLock()
	cached := s.lastRate
	s.mu.RUnlock()

	if cached != nil {
		return cached, nil
	}

	return s.refreshRate(ctx)
}

func (s *Service) refreshRate(ctx context.Context) (*model.ExchangeRate, error) {
	var fetched *model.ExchangeRate
	var fetchErr error

	if s.rates != nil {
		fetched, fetchErr = s.rates.GetRate(ctx, s.currency)
	} else {
		fetchErr = errors.New("rate provider not configured")
	}

	if fetchErr == nil {
		s.mu.Lock()
		s.lastRate = fetched
		s.mu.Unlock()
		return fetched, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Живой курс недоступен: оставляем последний известный, а если его
	// нет — подставляем курс по умолчанию из политики, помечая подмену.
	if s.lastRate != nil {
		if s.logger != nil {
			s.logger.Warn("rate refresh failed, keeping last known rate", zap.Error(fetchErr))
		}
		return s.lastRate, nil
	}

	policy, err := s.repo.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}

	fallback := &model.ExchangeRate{
		Currency: s.currency,
		Rate:     policy.DefaultRate,
		Fallback: true,
	}
	s.lastRate = fallback

	if s.logger != nil {
		s.logger.Warn("rate provider unavailable, using policy default rate",
			zap.Error(fetchErr),
			zap.String("rate", policy.DefaultRate.String()),
		)
	}

	return fallback, nil
}

// StartRateRefresh запускает фоновое периодическое обновление курса.
func (s *Service) StartRateRefresh(ctx context.Context) {
	if s.rates == nil {
		return
	}

	go func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, _ = s.refreshRate(refreshCtx)
		cancel()

		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				_, _ = s.refreshRate(refreshCtx)
				cancel()
			}
		}
	}()
}
