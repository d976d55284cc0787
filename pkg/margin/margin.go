// Package margin computes predicted profit margins for catalog products.
package margin

import (
	"math"
)

// Predict returns the predicted profit margin as a percentage of price,
// rounded to two decimal places. A non-positive price yields 0.
func Predict(price, cost float64) float64 {
	if price <= 0 {
		return 0.0
	}
	pct := (price - cost) / price * 100
	return math.Round(pct*100) / 100
}
