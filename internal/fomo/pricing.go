package fomo

import "math"

const (
	SurgeRate          = 0.02
	PriceCapMultiplier = 2.5
	ViewerFloor        = 5

	demandDivisor  = 50
	minViewerDelta = -1
	maxViewerDelta = 3
)

// Scarcity is the depleted fraction of stock: 0 when fully stocked.
func Scarcity(remaining, total int) float64 {
	return 1 - float64(remaining)/float64(total)
}

func DemandFactor(viewers int) float64 {
	return float64(viewers) / demandDivisor
}

func SurgeIncrement(base float64, remaining, total, viewers int) float64 {
	return base * SurgeRate * (1 + Scarcity(remaining, total) + DemandFactor(viewers))
}

func PriceCap(base float64) float64 {
	return base * PriceCapMultiplier
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NextPrice is the display price after one surge of it. It builds on the
// previous display price, not on CurrentPrice, and never exceeds the cap.
func NextPrice(it SimulatedItem) float64 {
	inc := SurgeIncrement(it.BasePrice, it.RemainingStock, it.TotalStock, it.DisplayViewers)
	return math.Min(Round2(it.DisplayPrice+inc), PriceCap(it.BasePrice))
}

// ViewerDelta draws uniformly from [-1, +3].
func ViewerDelta(r Rand) int {
	return r.IntN(maxViewerDelta-minViewerDelta+1) + minViewerDelta
}

func DriftViewers(current, delta int) int {
	return max(ViewerFloor, current+delta)
}

// SurgePercent is how far the display price sits above base, in whole percent.
func SurgePercent(display, base float64) int {
	if base <= 0 {
		return 0
	}
	return int(math.Round((display - base) / base * 100))
}

func StockPercent(remaining, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(remaining) / float64(total) * 100
}
