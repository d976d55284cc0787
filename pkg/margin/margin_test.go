package margin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmaier/listify/pkg/margin"
)

func TestPredict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		price float64
		cost  float64
		want  float64
	}{
		{name: "typical product", price: 20, cost: 12, want: 40.0},
		{name: "zero cost", price: 10, cost: 0, want: 100.0},
		{name: "cost equals price", price: 15, cost: 15, want: 0.0},
		{name: "cost above price", price: 10, cost: 15, want: -50.0},
		{name: "rounds to two decimals", price: 3, cost: 1, want: 66.67},
		{name: "zero price", price: 0, cost: 5, want: 0.0},
		{name: "negative price", price: -1, cost: 5, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.want, margin.Predict(tt.price, tt.cost), 1e-9)
		})
	}
}
