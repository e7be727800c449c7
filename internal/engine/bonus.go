package engine

import "github.com/shopspring/decimal"

// MaxRedeemable возвращает максимальную сумму бонусов, доступную к
// списанию. Списание квантуется шагом step: остаток меньше шага не
// используется. Списание выключено целиком, когда сумма корзины ниже
// порога threshold или баланс меньше одного шага.
func MaxRedeemable(balance, subtotal, threshold, step decimal.Decimal) (decimal.Decimal, error) {
	if !step.IsPositive() || threshold.IsNegative() {
		return decimal.Zero, ErrInvalidPolicy
	}

	if subtotal.LessThan(threshold) || balance.LessThan(step) {
		return decimal.Zero, nil
	}

	limit := decimal.Min(balance, subtotal)
	return limit.Div(step).Floor().Mul(step), nil
}

// ClampRedemption приводит выбранную пользователем сумму списания к
// допустимой. Вызывается заново при каждом изменении корзины или
// баланса, чтобы устаревший выбор не дошёл до расчёта итога.
// Функция идемпотентна.
func ClampRedemption(selected, max decimal.Decimal) decimal.Decimal {
	if selected.IsNegative() {
		return decimal.Zero
	}
	if selected.GreaterThan(max) {
		return max
	}
	return selected
}
