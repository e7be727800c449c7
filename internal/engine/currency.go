// Package engine реализует расчётное ядро ценообразования и лояльности.
// Все функции чистые: результат зависит только от аргументов, внутреннего
// состояния между вызовами нет. Арифметика ведётся в decimal без
// промежуточных округлений; округление до 2 знаков — забота слоя
// представления.
package engine

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidRate возвращается при курсе, не являющемся положительным числом.
var (
	ErrInvalidRate = errors.New("invalid exchange rate")
	// ErrInvalidPolicy возвращается при некорректных константах политики
	// (шаг, порог, буфер); это ошибка конфигурации, а не пользователя.
	ErrInvalidPolicy = errors.New("invalid pricing policy")
	// ErrNegativeTotal возвращается, когда списание бонусов превышает
	// сумму корзины с доставкой.
	ErrNegativeTotal = errors.New("negative cart total")
)

// ToForeign переводит сумму из базовой валюты в иностранную по курсу
// с биржевым буфером: делитель равен rate * (1 + buffer). Буфер
// закладывает запас на волатильность между оценкой и фактическим расчётом.
func ToForeign(amount, rate, buffer decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	if buffer.IsNegative() {
		return decimal.Zero, ErrInvalidPolicy
	}

	divisor := rate.Mul(decimal.NewFromInt(1).Add(buffer))
	return amount.Div(divisor), nil
}

// ToBase переводит сумму из иностранной валюты в базовую. Буфер здесь
// не применяется: в эту сторону пересчёт отражает курс как есть.
func ToBase(amount, rate decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	return amount.Mul(rate), nil
}
