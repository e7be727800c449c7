package engine

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-pricing/internal/model"
)

// LineCost содержит стоимость одной позиции закупки в обеих валютах.
type LineCost struct {
	ProductID   string          `json:"product_id"`
	CostBase    decimal.Decimal `json:"cost_base"`
	CostForeign decimal.Decimal `json:"cost_foreign"`
}

// Rollup содержит постатейные и итоговые суммы закупки.
type Rollup struct {
	Lines        []LineCost      `json:"lines"`
	TotalBase    decimal.Decimal `json:"total_base"`
	TotalForeign decimal.Decimal `json:"total_foreign"`
}

// RollupProcurement считает стоимость закупки по позициям и итог в обеих
// валютах. Итог в иностранной валюте считается одним пересчётом от
// суммы в базовой, а не сложением построчных пересчётов, чтобы не
// накапливать ошибку округления.
func RollupProcurement(items []model.ProcurementLineItem, rate, buffer decimal.Decimal) (*Rollup, error) {
	res := &Rollup{
		Lines:        make([]LineCost, 0, len(items)),
		TotalBase:    decimal.Zero,
		TotalForeign: decimal.Zero,
	}

	for _, it := range items {
		costBase := it.UnitCostBase.Mul(decimal.NewFromInt(int64(it.Quantity)))
		costForeign, err := ToForeign(costBase, rate, buffer)
		if err != nil {
			return nil, err
		}

		res.Lines = append(res.Lines, LineCost{
			ProductID:   it.ProductID,
			CostBase:    costBase,
			CostForeign: costForeign,
		})
		res.TotalBase = res.TotalBase.Add(costBase)
	}

	totalForeign, err := ToForeign(res.TotalBase, rate, buffer)
	if err != nil {
		return nil, err
	}
	res.TotalForeign = totalForeign

	return res, nil
}
