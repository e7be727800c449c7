package engine

import (
	"errors"
	"testing"

	"github.com/mmeshcher/storefront-pricing/internal/model"
)

func TestComputeCartTotals(t *testing.T) {
	items := []model.CartLineItem{
		{ProductID: "a", UnitPrice: dec(t, "500"), Quantity: 2},
		{ProductID: "b", UnitPrice: dec(t, "250"), Quantity: 2},
	}

	totals, err := ComputeCartTotals(items, true, dec(t, "500"), dec(t, "300"))
	if err != nil {
		t.Fatalf("ComputeCartTotals error: %v", err)
	}

	if !totals.ItemsSubtotal.Equal(dec(t, "1500")) {
		t.Fatalf("ItemsSubtotal = %s, want 1500", totals.ItemsSubtotal)
	}
	if !totals.DeliveryFee.Equal(dec(t, "500")) {
		t.Fatalf("DeliveryFee = %s, want 500", totals.DeliveryFee)
	}
	if !totals.FinalTotal.Equal(dec(t, "1700")) {
		t.Fatalf("FinalTotal = %s, want 1700", totals.FinalTotal)
	}
}

func TestComputeCartTotals_DeliveryWaived(t *testing.T) {
	items := []model.CartLineItem{
		{ProductID: "a", UnitPrice: dec(t, "1000"), Quantity: 1},
	}

	totals, err := ComputeCartTotals(items, false, dec(t, "500"), dec(t, "0"))
	if err != nil {
		t.Fatalf("ComputeCartTotals error: %v", err)
	}
	if !totals.DeliveryFee.IsZero() {
		t.Fatalf("DeliveryFee = %s, want 0", totals.DeliveryFee)
	}
	if !totals.FinalTotal.Equal(dec(t, "1000")) {
		t.Fatalf("FinalTotal = %s, want 1000", totals.FinalTotal)
	}
}

func TestComputeCartTotals_OverRedemption(t *testing.T) {
	items := []model.CartLineItem{
		{ProductID: "a", UnitPrice: dec(t, "1500"), Quantity: 1},
	}

	_, err := ComputeCartTotals(items, true, dec(t, "500"), dec(t, "2200"))
	if !errors.Is(err, ErrNegativeTotal) {
		t.Fatalf("error = %v, want ErrNegativeTotal", err)
	}
}

func TestAutoDelivery(t *testing.T) {
	tests := []struct {
		name  string
		items []model.CartLineItem
		want  bool
	}{
		{
			name: "single item single quantity",
			items: []model.CartLineItem{
				{ProductID: "a", Quantity: 1},
			},
			want: true,
		},
		{
			name: "single item multiple quantity",
			items: []model.CartLineItem{
				{ProductID: "a", Quantity: 2},
			},
			want: false,
		},
		{
			name: "two items",
			items: []model.CartLineItem{
				{ProductID: "a", Quantity: 1},
				{ProductID: "b", Quantity: 1},
			},
			want: false,
		},
		{
			name:  "empty cart",
			items: nil,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AutoDelivery(tt.items); got != tt.want {
				t.Fatalf("AutoDelivery = %v, want %v", got, tt.want)
			}
		})
	}
}
