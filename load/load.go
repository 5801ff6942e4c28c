// Package load turns workouts into a continuous daily training-load series
// using the Banister impulse-response model.
package load

import (
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/lucasjlepore/trainingload/training"
)

// ErrInvalidConstants is returned when the smoothing constants are unusable.
var ErrInvalidConstants = errors.New("invalid load constants")

// Constants configures the load model.
type Constants struct {
	ATLTauDays float64 `yaml:"atl_tau_days"`
	CTLTauDays float64 `yaml:"ctl_tau_days"`

	// FallbackIntensityFactor estimates TSS for activities that carry neither TSS nor IF.
	FallbackIntensityFactor float64 `yaml:"fallback_intensity_factor"`
}

// DefaultConstants returns tau 7/42 days and a 0.7 fallback intensity.
func DefaultConstants() Constants {
	return Constants{
		ATLTauDays:              7,
		CTLTauDays:              42,
		FallbackIntensityFactor: 0.7,
	}
}

// Validate reports non-positive time constants or a negative fallback intensity.
func (c Constants) Validate() error {
	if c.ATLTauDays <= 0 || c.CTLTauDays <= 0 {
		return fmt.Errorf("%w: time constants must be positive (atl=%g, ctl=%g)", ErrInvalidConstants, c.ATLTauDays, c.CTLTauDays)
	}
	if c.FallbackIntensityFactor < 0 {
		return fmt.Errorf("%w: fallback intensity factor must be non-negative (%g)", ErrInvalidConstants, c.FallbackIntensityFactor)
	}
	return nil
}

// DailyTSS is one day's summed training stress.
type DailyTSS struct {
	Date civil.Date
	TSS  float64
}

// ActivityFromWorkout projects a workout summary onto the load-model input.
// The activity date is the calendar date of the start time in its own location.
func ActivityFromWorkout(w training.WorkoutExecuted) training.Activity {
	a := training.Activity{
		Date:            w.Date(),
		Sport:           w.Sport.Tag(),
		DurationMin:     float64(w.DurationS) / 60.0,
		TSS:             w.Summary.TSS,
		IntensityFactor: w.Summary.IF,
		HRAvg:           w.Summary.AvgHR,
		PowerAvg:        w.Summary.AvgPower,
		ElevationM:      w.Summary.ElevationM,
	}
	if w.Summary.DistanceM != nil {
		a.DistanceKM = training.Float(*w.Summary.DistanceM / 1000.0)
	}
	return a
}

// EstimateTSS returns the activity's own TSS, or 100 x hours x intensity where intensity
// is the activity's IF if known, else the fallback constant.
func EstimateTSS(a training.Activity, c Constants) float64 {
	if a.TSS != nil {
		return *a.TSS
	}
	intensity := c.FallbackIntensityFactor
	if a.IntensityFactor != nil {
		intensity = *a.IntensityFactor
	}
	return 100.0 * (a.DurationMin / 60.0) * intensity
}

// DailyTotals groups activities by date and sums their TSS. The result is sorted by date
// and contains only days that had activities.
func DailyTotals(activities []training.Activity, c Constants) ([]DailyTSS, error) {
	byDate := make(map[civil.Date]float64, len(activities))
	for i, a := range activities {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("activity %d: %w", i, err)
		}
		byDate[a.Date] += EstimateTSS(a, c)
	}

	out := make([]DailyTSS, 0, len(byDate))
	for d, tss := range byDate {
		out = append(out, DailyTSS{Date: d, TSS: tss})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// FillGaps reindexes a date-sorted daily series onto every calendar day between its
// first and last date, inclusive. Missing days get TSS 0.
func FillGaps(daily []DailyTSS) []DailyTSS {
	if len(daily) == 0 {
		return nil
	}
	first, last := daily[0].Date, daily[len(daily)-1].Date
	byDate := make(map[civil.Date]float64, len(daily))
	for _, d := range daily {
		byDate[d.Date] += d.TSS
	}

	out := make([]DailyTSS, 0, last.DaysSince(first)+1)
	for d := first; !d.After(last); d = d.AddDays(1) {
		out = append(out, DailyTSS{Date: d, TSS: byDate[d]})
	}
	return out
}

// Smooth applies the exponentially weighted recursion load[i] = a*tss[i] + (1-a)*load[i-1]
// with a = 1/tau, seeded with load[0] = tss[0].
func Smooth(tss []float64, tauDays float64) []float64 {
	if len(tss) == 0 {
		return nil
	}
	alpha := 1.0 / tauDays
	out := make([]float64, len(tss))
	out[0] = tss[0]
	for i := 1; i < len(tss); i++ {
		out[i] = alpha*tss[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Series computes ATL, CTL and TSB over a gap-free daily series.
func Series(daily []DailyTSS, c Constants) ([]training.MetricsDaily, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(daily) == 0 {
		return []training.MetricsDaily{}, nil
	}

	tss := make([]float64, len(daily))
	for i, d := range daily {
		tss[i] = d.TSS
	}
	atl := Smooth(tss, c.ATLTauDays)
	ctl := Smooth(tss, c.CTLTauDays)

	out := make([]training.MetricsDaily, len(daily))
	for i, d := range daily {
		out[i] = training.MetricsDaily{
			MetricDate: d.Date,
			TSS:        d.TSS,
			ATL:        atl[i],
			CTL:        ctl[i],
			TSB:        ctl[i] - atl[i],
		}
	}
	return out, nil
}

// ComputeMetricsDaily runs consolidation, gap filling and smoothing. An empty activity
// list yields an empty series.
func ComputeMetricsDaily(activities []training.Activity, c Constants) ([]training.MetricsDaily, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	daily, err := DailyTotals(activities, c)
	if err != nil {
		return nil, err
	}
	return Series(FillGaps(daily), c)
}

// ComputeFromWorkouts is ComputeMetricsDaily over workout summaries.
func ComputeFromWorkouts(workouts []training.WorkoutExecuted, c Constants) ([]training.MetricsDaily, error) {
	activities := make([]training.Activity, 0, len(workouts))
	for _, w := range workouts {
		activities = append(activities, ActivityFromWorkout(w))
	}
	return ComputeMetricsDaily(activities, c)
}
