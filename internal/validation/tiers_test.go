package validation

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront-pricing/internal/model"
)

func TestIsValidTierTable(t *testing.T) {
	tests := []struct {
		name  string
		tiers []model.LoyaltyTier
		valid bool
	}{
		{
			name: "valid table",
			tiers: []model.LoyaltyTier{
				{Title: "Bronze", OrderThreshold: 0, BonusPercent: decimal.NewFromInt(3)},
				{Title: "Silver", OrderThreshold: 10, BonusPercent: decimal.NewFromInt(5)},
				{Title: "Gold", OrderThreshold: 25, BonusPercent: decimal.NewFromInt(8)},
			},
			valid: true,
		},
		{
			name: "unsorted but unique thresholds",
			tiers: []model.LoyaltyTier{
				{Title: "Gold", OrderThreshold: 25, BonusPercent: decimal.NewFromInt(8)},
				{Title: "Bronze", OrderThreshold: 0, BonusPercent: decimal.NewFromInt(3)},
			},
			valid: true,
		},
		{
			name: "duplicate threshold",
			tiers: []model.LoyaltyTier{
				{Title: "Bronze", OrderThreshold: 10, BonusPercent: decimal.NewFromInt(3)},
				{Title: "Silver", OrderThreshold: 10, BonusPercent: decimal.NewFromInt(5)},
			},
			valid: false,
		},
		{
			name: "negative threshold",
			tiers: []model.LoyaltyTier{
				{Title: "Bronze", OrderThreshold: -1, BonusPercent: decimal.NewFromInt(3)},
			},
			valid: false,
		},
		{
			name: "negative percent",
			tiers: []model.LoyaltyTier{
				{Title: "Bronze", OrderThreshold: 0, BonusPercent: decimal.NewFromInt(-3)},
			},
			valid: false,
		},
		{
			name:  "empty table",
			tiers: nil,
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidTierTable(tt.tiers)
			if got != tt.valid {
				t.Fatalf("IsValidTierTable = %v, want %v", got, tt.valid)
			}
		})
	}
}
