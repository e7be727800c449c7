// Package model содержит доменные сущности сервиса ценообразования и лояльности.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// ExchangeRate описывает дневной курс иностранной валюты к базовой.
// Rate задаётся как "единиц иностранной валюты за 1 единицу базовой".
// Fallback устанавливается, когда вместо живого курса используется
// политикой заданный курс по умолчанию.
type ExchangeRate struct {
	Currency      string          `json:"currency"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate time.Time       `json:"effective_date"`
	Fallback      bool            `json:"fallback"`
}

// LoyaltyTier описывает уровень программы лояльности.
type LoyaltyTier struct {
	ID             int64
	Title          string
	OrderThreshold int
	BonusPercent   decimal.Decimal
}

// UserLoyaltyState содержит состояние лояльности пользователя:
// бонусный баланс, число заказов и текущий/следующий уровни.
// Current равен nil, пока пользователь не достиг ни одного уровня.
type UserLoyaltyState struct {
	BonusBalance decimal.Decimal
	OrderCount   int
	Current      *LoyaltyTier
	Next         *LoyaltyTier
	OrdersToNext int
}

// CartLineItem описывает позицию покупательской корзины.
type CartLineItem struct {
	ProductID string          `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// ProcurementLineItem описывает позицию закупки у поставщика.
// Стоимость вводится в базовой валюте.
type ProcurementLineItem struct {
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitCostBase decimal.Decimal `json:"unit_cost"`
}

// PricingPolicy содержит настраиваемые константы ценообразования.
// Значения загружаются из настроек деплоймента, а не зашиваются в код.
type PricingPolicy struct {
	BonusThreshold decimal.Decimal
	BonusStep      decimal.Decimal
	DeliveryPrice  decimal.Decimal
	CashbackRound  decimal.Decimal
	RateBuffer     decimal.Decimal
	DefaultRate    decimal.Decimal
}

// Proposal — предложенный клиенту расчёт корзины. Значения предварительны:
// при оформлении заказа сервис пересчитывает их заново и сверяет
// списание бонусов с авторитетным балансом.
type Proposal struct {
	ItemsSubtotal     decimal.Decimal `json:"items_subtotal"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	DeliveryActive    bool            `json:"delivery_active"`
	RedeemedBonus     decimal.Decimal `json:"redeemed_bonus"`
	MaxRedeemable     decimal.Decimal `json:"max_redeemable"`
	FinalTotal        decimal.Decimal `json:"final_total"`
	ProjectedCashback decimal.Decimal `json:"projected_cashback"`
}

// PlacedOrder описывает оформленный заказ с зафиксированными суммами.
type PlacedOrder struct {
	Number   string
	Total    decimal.Decimal
	Redeemed decimal.Decimal
	Cashback decimal.Decimal
	PlacedAt time.Time
}
