package model

import "github.com/shopspring/decimal"

// Points converts a price (or price difference) into instrument points:
// price × 10^digits, truncated toward zero.
func Points(price decimal.Decimal, digits int32) int {
	return int(price.Shift(digits).IntPart())
}

// PointsToPrice converts a point count back to a price difference.
func PointsToPrice(points int, digits int32) decimal.Decimal {
	return decimal.NewFromInt(int64(points)).Shift(-digits)
}
