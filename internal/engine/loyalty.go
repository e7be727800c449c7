package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-pricing/internal/model"
)

// TierResolution содержит текущий и следующий уровни лояльности.
// Current равен nil, если пользователь не достиг даже нижнего уровня —
// это состояние "уровня ещё нет", отличное от нижнего уровня.
type TierResolution struct {
	Current      *model.LoyaltyTier
	Next         *model.LoyaltyTier
	OrdersToNext int
}

// ResolveTier определяет уровень пользователя по числу заказов.
// Текущий уровень — последний, чей порог не превышает orderCount;
// следующий — идущий сразу за ним по возрастанию порога.
func ResolveTier(orderCount int, tiers []model.LoyaltyTier) TierResolution {
	sorted := make([]model.LoyaltyTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OrderThreshold < sorted[j].OrderThreshold
	})

	res := TierResolution{}
	for i := range sorted {
		if sorted[i].OrderThreshold <= orderCount {
			res.Current = &sorted[i]
			continue
		}
		res.Next = &sorted[i]
		res.OrdersToNext = sorted[i].OrderThreshold - orderCount
		break
	}

	return res
}

// ProjectCashback считает прогноз кешбэка за текущий заказ. Кешбэк
// начисляется только при наличии уровня, сумме не ниже порога и нулевом
// списании бонусов в этом же заказе. Сумма квантуется вниз до ближайшего
// кратного roundTo, чтобы не обещать больше, чем будет начислено.
func ProjectCashback(subtotal decimal.Decimal, current *model.LoyaltyTier, redeemedBonus, threshold, roundTo decimal.Decimal) (decimal.Decimal, error) {
	if !roundTo.IsPositive() || threshold.IsNegative() {
		return decimal.Zero, ErrInvalidPolicy
	}

	if current == nil || redeemedBonus.IsPositive() || subtotal.LessThan(threshold) {
		return decimal.Zero, nil
	}

	raw := subtotal.Mul(current.BonusPercent).Div(decimal.NewFromInt(100))
	return raw.Div(roundTo).Floor().Mul(roundTo), nil
}
