package training

import (
	"fmt"
	"math"
)

// ValidationError reports one field of one entity that failed its constraints.
type ValidationError struct {
	Entity string
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s=%v: %s", e.Entity, e.Field, e.Value, e.Reason)
}

func intRange(entity, field string, v *int, lo, hi int) error {
	if v == nil {
		return nil
	}
	if *v < lo || *v > hi {
		return &ValidationError{Entity: entity, Field: field, Value: *v, Reason: fmt.Sprintf("must be within [%d, %d]", lo, hi)}
	}
	return nil
}

func floatRange(entity, field string, v *float64, lo, hi float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v < lo || *v > hi {
		return &ValidationError{Entity: entity, Field: field, Value: *v, Reason: fmt.Sprintf("must be within [%g, %g]", lo, hi)}
	}
	return nil
}

func nonNegative(entity, field string, v *float64) error {
	return floatRange(entity, field, v, 0, math.Inf(1))
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks sample ranges.
func (s Sample) Validate() error {
	const e = "sample"
	if s.TS < 0 {
		return &ValidationError{Entity: e, Field: "t_s", Value: s.TS, Reason: "must be non-negative"}
	}
	return firstError(
		intRange(e, "power_w", s.PowerW, 0, 2000),
		intRange(e, "hr_bpm", s.HRBPM, 0, 220),
		nonNegative(e, "pace_mps", s.PaceMPS),
		intRange(e, "cadence", s.Cadence, 0, 300),
		floatRange(e, "lat", s.Lat, -90, 90),
		floatRange(e, "lon", s.Lon, -180, 180),
		nonNegative(e, "distance_m", s.DistanceM),
	)
}

// Validate checks workout identity fields and normalizes the source tag.
func (w *WorkoutExecuted) Validate() error {
	const e = "workout"
	if w.AthleteID < 1 {
		return &ValidationError{Entity: e, Field: "athlete_id", Value: w.AthleteID, Reason: "must be >= 1"}
	}
	src, err := NormalizeSource(string(w.Source))
	if err != nil {
		return err
	}
	w.Source = src
	if w.DurationS < 0 {
		return &ValidationError{Entity: e, Field: "duration_s", Value: w.DurationS, Reason: "must be non-negative"}
	}
	if w.StartTime.IsZero() {
		return &ValidationError{Entity: e, Field: "start_time", Value: w.StartTime, Reason: "is required"}
	}
	if len(w.FileRef) > 500 {
		return &ValidationError{Entity: e, Field: "file_ref", Value: len(w.FileRef), Reason: "must be at most 500 characters"}
	}
	return nil
}

// Validate checks threshold ranges. The sport must be one of cycling, running or swimming.
func (t AthleteThreshold) Validate() error {
	const e = "athlete_threshold"
	if t.AthleteID < 1 {
		return &ValidationError{Entity: e, Field: "athlete_id", Value: t.AthleteID, Reason: "must be >= 1"}
	}
	if !t.EffectiveDate.IsValid() {
		return &ValidationError{Entity: e, Field: "effective_date", Value: t.EffectiveDate, Reason: "is required"}
	}
	switch NormalizeSport(string(t.Sport)) {
	case SportCycling, SportRunning, SportSwimming:
	default:
		return &ValidationError{Entity: e, Field: "sport", Value: t.Sport, Reason: "must be one of cycling, running, swimming"}
	}
	if len(t.Notes) > 500 {
		return &ValidationError{Entity: e, Field: "notes", Value: len(t.Notes), Reason: "must be at most 500 characters"}
	}
	return firstError(
		intRange(e, "ftp", t.FTP, 0, 600),
		floatRange(e, "threshold_pace_min_per_km", t.ThresholdPaceMinPerKM, 2.0, 10.0),
		floatRange(e, "critical_speed_m_per_s", t.CriticalSpeedMPS, 2.0, 8.0),
		floatRange(e, "threshold_pace_100m_s", t.ThresholdPace100mS, 50, 300),
		intRange(e, "lthr", t.LTHR, 100, 220),
		intRange(e, "max_hr", t.MaxHR, 100, 220),
		intRange(e, "resting_hr", t.RestingHR, 30, 100),
	)
}

// Validate checks daily metric ranges. TSB is signed and unconstrained.
func (m MetricsDaily) Validate() error {
	const e = "metrics_daily"
	if !m.MetricDate.IsValid() {
		return &ValidationError{Entity: e, Field: "metric_date", Value: m.MetricDate, Reason: "is required"}
	}
	return firstError(
		nonNegative(e, "tss", &m.TSS),
		nonNegative(e, "atl", &m.ATL),
		nonNegative(e, "ctl", &m.CTL),
		intRange(e, "rhr", m.RHR, 30, 100),
		floatRange(e, "hrv", m.HRV, 0, 200),
		floatRange(e, "sleep_score", m.SleepScore, 0, 100),
		intRange(e, "sleep_duration_min", m.SleepDurationMin, 0, 1440),
		intRange(e, "rpe", m.RPE, 1, 10),
	)
}

// Validate checks that an activity carries non-negative quantities.
func (a Activity) Validate() error {
	const e = "activity"
	if !a.Date.IsValid() {
		return &ValidationError{Entity: e, Field: "activity_date", Value: a.Date, Reason: "is required"}
	}
	return firstError(
		nonNegative(e, "duration_min", &a.DurationMin),
		nonNegative(e, "distance_km", a.DistanceKM),
		nonNegative(e, "tss", a.TSS),
		nonNegative(e, "hr_avg", a.HRAvg),
		nonNegative(e, "power_avg", a.PowerAvg),
		nonNegative(e, "pace_min_per_km", a.PaceMinPerKM),
		nonNegative(e, "elevation_m", a.ElevationM),
		nonNegative(e, "intensity_factor", a.IntensityFactor),
	)
}
