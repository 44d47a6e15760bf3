package indicator

// SuperTrend calculates the SuperTrend trailing band from high, low and close prices.
// Values before index atrPeriod+1 are zero; nil is returned when the input is too short.
func SuperTrend(high, low, close []float64, atrPeriod int, factor float64) []float64 {
	atr := ATR(high, low, close, atrPeriod)
	if atr == nil {
		return nil
	}

	length := len(close)
	upper := make([]float64, length)
	lower := make([]float64, length)
	trend := make([]float64, length)

	for i := atrPeriod; i < length; i++ {
		median := (high[i] + low[i]) / 2
		basicUpper := median + atr[i]*factor
		basicLower := median - atr[i]*factor

		if i == atrPeriod {
			upper[i], lower[i], trend[i] = basicUpper, basicLower, basicUpper
			continue
		}

		// bands only tighten while price stays inside them
		if basicUpper < upper[i-1] || close[i-1] > upper[i-1] {
			upper[i] = basicUpper
		} else {
			upper[i] = upper[i-1]
		}
		if basicLower > lower[i-1] || close[i-1] < lower[i-1] {
			lower[i] = basicLower
		} else {
			lower[i] = lower[i-1]
		}

		if trend[i-1] == upper[i-1] {
			if close[i] > upper[i] {
				trend[i] = lower[i]
			} else {
				trend[i] = upper[i]
			}
		} else {
			if close[i] < lower[i] {
				trend[i] = upper[i]
			} else {
				trend[i] = lower[i]
			}
		}
	}

	trend[atrPeriod] = 0
	return trend
}
