package pipeline

import (
	"math"
	"testing"
)

func TestCalculateCost(t *testing.T) {
	cases := []struct {
		name   string
		input  int
		output int
		want   float64
	}{
		{"zero", 0, 0, 0.0},
		{"one million each", 1_000_000, 1_000_000, 3.50},
		{"input only", 2_000_000, 0, 2 * InputPricePerMillion},
		{"output only", 0, 500_000, 0.5 * OutputPricePerMillion},
		{"typical stage", 12_000, 4_000, 12_000.0/1e6*InputPricePerMillion + 4_000.0/1e6*OutputPricePerMillion},
	}

	for _, tc := range cases {
		got := CalculateCost(tc.input, tc.output)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: CalculateCost(%d, %d) = %v, want %v", tc.name, tc.input, tc.output, got, tc.want)
		}
	}
}

func TestCalculateCostClampsNegatives(t *testing.T) {
	if got := CalculateCost(-100, -100); got != 0.0 {
		t.Errorf("negative counts should clamp to zero, got %v", got)
	}
	if got := CalculateCost(-1, 1_000_000); math.Abs(got-OutputPricePerMillion) > 1e-9 {
		t.Errorf("negative input should clamp independently, got %v", got)
	}
}
