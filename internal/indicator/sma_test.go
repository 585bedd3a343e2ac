package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		period int
		want   []float64
	}{
		{"period 3", []float64{10, 11, 12, 13, 14, 15}, 3, []float64{11, 12, 13, 14}},
		{"period 1 is identity", []float64{5, 7, 9}, 1, []float64{5, 7, 9}},
		{"period equals length", []float64{2, 4, 6}, 3, []float64{4}},
		{"not enough data", []float64{10, 11}, 5, []float64{}},
		{"zero period", []float64{1, 2, 3}, 0, []float64{}},
		{"negative period", []float64{1, 2, 3}, -2, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(tt.prices, tt.period)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12, "sma[%d]", i)
			}
		})
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
