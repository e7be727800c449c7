package validation

import (
	"github.com/mmeshcher/storefront-pricing/internal/model"
)

// IsValidTierTable проверяет таблицу уровней лояльности: пороги
// неотрицательны и строго возрастают (после сортировки дубликатов нет),
// проценты кешбэка неотрицательны. Пустая таблица допустима — тогда ни
// один пользователь не имеет уровня.
func IsValidTierTable(tiers []model.LoyaltyTier) bool {
	seen := make(map[int]struct{}, len(tiers))

	for _, tier := range tiers {
		if tier.OrderThreshold < 0 {
			return false
		}
		if tier.BonusPercent.IsNegative() {
			return false
		}
		if _, ok := seen[tier.OrderThreshold]; ok {
			return false
		}
		seen[tier.OrderThreshold] = struct{}{}
	}

	return true
}
