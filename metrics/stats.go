package metrics

import "math"

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	count := 0
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		total += v
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func maxValue(values []float64) float64 {
	max := 0.0
	found := false
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		if !found || v > max {
			max = v
			found = true
		}
	}
	return max
}

// bestRollingPower returns the best mean power over any window of the given length.
// The boolean is false when the series is shorter than the window.
func bestRollingPower(power []float64, seconds int) (float64, bool) {
	if seconds <= 0 || len(power) < seconds {
		return 0, false
	}
	sum := 0.0
	for i := 0; i < seconds; i++ {
		sum += power[i]
	}
	best := sum / float64(seconds)
	for i := seconds; i < len(power); i++ {
		sum += power[i] - power[i-seconds]
		if current := sum / float64(seconds); current > best {
			best = current
		}
	}
	return best, true
}

// powerHRDecoupling compares the power:HR ratio of the second half against the first half, in percent.
func powerHRDecoupling(power, hr []float64) (float64, bool) {
	n := len(power)
	if n < 20 || n != len(hr) {
		return 0, false
	}
	mid := n / 2
	p1, h1 := average(power[:mid]), average(hr[:mid])
	p2, h2 := average(power[mid:]), average(hr[mid:])
	if p1 == 0 || p2 == 0 || h1 == 0 || h2 == 0 {
		return 0, false
	}
	return ((p2/h2)/(p1/h1) - 1.0) * 100.0, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
