package math

// Maximum calculates the maximum value among two floats
func Maximum(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Minimum calculates the minimum value among two floats
func Minimum(a, b float64) float64 {
	if a > b {
		return b
	}
	return a
}

// Clamp bounds v to the closed interval [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return Maximum(lo, Minimum(v, hi))
}

// Mean returns the arithmetic mean of values, zero for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Fraction returns part/total, zero when total is zero
func Fraction(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
