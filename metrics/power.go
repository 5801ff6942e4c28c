// Package metrics derives per-workout effort metrics from a power series.
package metrics

import (
	"errors"
	"math"
)

const (
	secondsPerHour = 3600.0

	// npWindowSeconds is the rolling window used by Normalized Power.
	npWindowSeconds = 30
)

var (
	ErrEmptySeries          = errors.New("power series is empty")
	ErrInvalidSampleRate    = errors.New("sample rate must be positive")
	ErrNonPositiveThreshold = errors.New("threshold must be positive")
	ErrNegativeDuration     = errors.New("duration cannot be negative")
)

// NormalizedPower returns the 4th-power mean of the 30 s trailing rolling average.
// Series shorter than one window return the arithmetic mean. The first window-1 points
// use a shrinking window instead of being dropped.
func NormalizedPower(series []float64, sampleRateHz int) (float64, error) {
	if len(series) == 0 {
		return 0, ErrEmptySeries
	}
	if sampleRateHz <= 0 {
		return 0, ErrInvalidSampleRate
	}

	window := npWindowSeconds * sampleRateHz
	if len(series) < window {
		return average(series), nil
	}

	sum := 0.0
	fourthPowerTotal := 0.0
	for i, p := range series {
		sum += p
		n := i + 1
		if i >= window {
			sum -= series[i-window]
			n = window
		}
		rolling := sum / float64(n)
		fourthPowerTotal += math.Pow(rolling, 4)
	}
	return math.Pow(fourthPowerTotal/float64(len(series)), 0.25), nil
}

// IntensityFactor returns np/ftp.
func IntensityFactor(np, ftp float64) (float64, error) {
	if ftp <= 0 {
		return 0, ErrNonPositiveThreshold
	}
	return np / ftp, nil
}

// VariabilityIndex returns np/avgPower, or 0 when avgPower is not positive.
func VariabilityIndex(np, avgPower float64) float64 {
	if avgPower <= 0 {
		return 0
	}
	return np / avgPower
}

// TSSFromPower returns the Training Stress Score; one hour at np == ftp scores 100.
func TSSFromPower(durationS int, np, ftp float64) (float64, error) {
	if ftp <= 0 {
		return 0, ErrNonPositiveThreshold
	}
	if durationS < 0 {
		return 0, ErrNegativeDuration
	}
	intensity := np / ftp
	return float64(durationS) * np * intensity / (ftp * secondsPerHour) * 100.0, nil
}
