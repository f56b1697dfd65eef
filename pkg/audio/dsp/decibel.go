// ABOUTME: Decibel and linear ratio conversion
// ABOUTME: Pure helpers for gain configuration
package dsp

import "math"

// DecibelsToRatio converts decibels to a linear amplitude ratio
func DecibelsToRatio(db float64) float64 {
	return math.Pow(10, db/20)
}

// RatioToDecibels converts a linear ratio to decibels.
// ratio must be positive; zero yields -Inf and negative values NaN.
func RatioToDecibels(ratio float64) float64 {
	return 20 * math.Log10(ratio)
}
