package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestToForeign(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		rate    string
		buffer  string
		want    string
		wantErr error
	}{
		{
			name:   "buffered rate",
			amount: "1000",
			rate:   "2.02",
			buffer: "0.05",
			want:   "471.48",
		},
		{
			name:   "zero buffer divides by plain rate",
			amount: "202",
			rate:   "2.02",
			buffer: "0",
			want:   "100.00",
		},
		{
			name:   "zero amount",
			amount: "0",
			rate:   "2.02",
			buffer: "0.05",
			want:   "0.00",
		},
		{
			name:    "zero rate",
			amount:  "100",
			rate:    "0",
			buffer:  "0.05",
			wantErr: ErrInvalidRate,
		},
		{
			name:    "negative rate",
			amount:  "100",
			rate:    "-1",
			buffer:  "0.05",
			wantErr: ErrInvalidRate,
		},
		{
			name:    "negative buffer",
			amount:  "100",
			rate:    "2.02",
			buffer:  "-0.01",
			wantErr: ErrInvalidPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToForeign(dec(t, tt.amount), dec(t, tt.rate), dec(t, tt.buffer))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToForeign error: %v", err)
			}
			if got.Round(2).String() != dec(t, tt.want).Round(2).String() {
				t.Fatalf("ToForeign = %s, want %s", got.Round(2), tt.want)
			}
		})
	}
}

func TestToBase(t *testing.T) {
	got, err := ToBase(dec(t, "100"), dec(t, "2.02"))
	if err != nil {
		t.Fatalf("ToBase error: %v", err)
	}
	if !got.Equal(dec(t, "202")) {
		t.Fatalf("ToBase = %s, want 202", got)
	}

	if _, err := ToBase(dec(t, "100"), decimal.Zero); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("error = %v, want ErrInvalidRate", err)
	}
}

// Буфер применяется только в сторону base→foreign, поэтому обратный
// пересчёт возвращает amount/(1+buffer), а не исходную сумму.
func TestRoundTripAsymmetry(t *testing.T) {
	amount := dec(t, "1000")
	rate := dec(t, "2.02")
	buffer := dec(t, "0.05")

	foreign, err := ToForeign(amount, rate, buffer)
	if err != nil {
		t.Fatalf("ToForeign error: %v", err)
	}

	back, err := ToBase(foreign, rate)
	if err != nil {
		t.Fatalf("ToBase error: %v", err)
	}

	want := amount.Div(decimal.NewFromInt(1).Add(buffer))
	if back.Round(6).String() != want.Round(6).String() {
		t.Fatalf("round trip = %s, want %s", back.Round(6), want.Round(6))
	}

	if back.GreaterThanOrEqual(amount) {
		t.Fatalf("round trip with positive buffer must lose the buffer share, got %s from %s", back, amount)
	}
}
