package engine

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-pricing/internal/model"
)

// CartTotals содержит итоги корзины для одного вычисления.
type CartTotals struct {
	ItemsSubtotal decimal.Decimal
	DeliveryFee   decimal.Decimal
	RedeemedBonus decimal.Decimal
	FinalTotal    decimal.Decimal
}

// Subtotal возвращает сумму позиций корзины без доставки и бонусов.
func Subtotal(items []model.CartLineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// AutoDelivery возвращает true для "маленького заказа": ровно одна
// позиция с количеством 1. Для таких заказов доставка включается
// автоматически; в остальных случаях выбор остаётся за пользователем.
func AutoDelivery(items []model.CartLineItem) bool {
	return len(items) == 1 && items[0].Quantity == 1
}

// ComputeCartTotals считает итог корзины: сумма позиций плюс доставка
// минус списанные бонусы. Проверка допустимости списания — обязанность
// вызывающего (см. MaxRedeemable/ClampRedemption); если итог получается
// отрицательным, возвращается ErrNegativeTotal.
func ComputeCartTotals(items []model.CartLineItem, deliveryActive bool, deliveryPrice, redeemedBonus decimal.Decimal) (*CartTotals, error) {
	subtotal := Subtotal(items)

	fee := decimal.Zero
	if deliveryActive {
		fee = deliveryPrice
	}

	total := subtotal.Add(fee).Sub(redeemedBonus)
	if total.IsNegative() {
		return nil, ErrNegativeTotal
	}

	return &CartTotals{
		ItemsSubtotal: subtotal,
		DeliveryFee:   fee,
		RedeemedBonus: redeemedBonus,
		FinalTotal:    total,
	}, nil
}
