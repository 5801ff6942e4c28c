package extract

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tormoder/fit"

	"github.com/lucasjlepore/trainingload/training"
)

const semicirclesToDegrees = 180.0 / (1 << 31)

// SessionSummary holds the device-reported session fields. Nil means the device did not
// report the field.
type SessionSummary struct {
	StartTime       time.Time `json:"start_time"`
	Sport           string    `json:"sport,omitempty"`
	TotalDistanceM  *float64  `json:"total_distance_m,omitempty"`
	TotalAscentM    *float64  `json:"total_ascent_m,omitempty"`
	AvgHR           *int      `json:"avg_hr,omitempty"`
	MaxHR           *int      `json:"max_hr,omitempty"`
	AvgPower        *int      `json:"avg_power,omitempty"`
	MaxPower        *int      `json:"max_power,omitempty"`
	AvgCadence      *int      `json:"avg_cadence,omitempty"`
	NormalizedPower *float64  `json:"normalized_power,omitempty"`
	TSS             *float64  `json:"tss,omitempty"`
}

func sessionSummary(s *fit.SessionMsg) SessionSummary {
	out := SessionSummary{
		StartTime: validTimeOrZero(s.StartTime),
		Sport:     strings.TrimPrefix(s.Sport.String(), "Sport"),
	}
	if d := s.GetTotalDistanceScaled(); isFinite(d) && d >= 0 {
		out.TotalDistanceM = training.Float(d)
	}
	if s.TotalAscent != math.MaxUint16 {
		out.TotalAscentM = training.Float(float64(s.TotalAscent))
	}
	out.AvgHR = uint8Ptr(s.AvgHeartRate)
	out.MaxHR = uint8Ptr(s.MaxHeartRate)
	out.AvgPower = uint16Ptr(s.AvgPower)
	out.MaxPower = uint16Ptr(s.MaxPower)
	if c, ok := cadenceFromAny(s.GetAvgCadence()); ok {
		out.AvgCadence = training.Int(c)
	}
	if s.NormalizedPower != math.MaxUint16 {
		out.NormalizedPower = training.Float(float64(s.NormalizedPower))
	}
	if s.TrainingStressScore != math.MaxUint16 {
		out.TSS = training.Float(float64(s.TrainingStressScore) / 10.0)
	}
	return out
}

// buildSamples converts records in encounter order. Records without a timestamp are
// dropped. The first timestamp seen is t0.
func buildSamples(records []*fit.RecordMsg) ([]training.Sample, time.Time, error) {
	var (
		t0      time.Time
		samples = make([]training.Sample, 0, len(records))
	)
	for i, rec := range records {
		if rec == nil {
			continue
		}
		ts := validTimeOrZero(rec.Timestamp)
		if ts.IsZero() {
			continue
		}
		if t0.IsZero() {
			t0 = ts
		}

		s := recordSample(rec)
		s.TS = int(math.Round(ts.Sub(t0).Seconds()))
		if err := s.Validate(); err != nil {
			return nil, t0, fmt.Errorf("record %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return samples, t0, nil
}

func recordSample(rec *fit.RecordMsg) training.Sample {
	var s training.Sample
	if rec.Power != math.MaxUint16 {
		s.PowerW = training.Int(int(rec.Power))
	}
	s.HRBPM = uint8Ptr(rec.HeartRate)
	s.Cadence = uint8Ptr(rec.Cadence)
	if v, ok := extractSpeed(rec); ok {
		s.PaceMPS = training.Float(v)
	}
	if v, ok := extractAltitude(rec); ok {
		s.AltitudeM = training.Float(v)
	}
	if !rec.PositionLat.Invalid() && !rec.PositionLong.Invalid() {
		s.Lat = training.Float(float64(rec.PositionLat.Semicircles()) * semicirclesToDegrees)
		s.Lon = training.Float(float64(rec.PositionLong.Semicircles()) * semicirclesToDegrees)
	}
	if rec.Temperature != math.MaxInt8 {
		s.TemperatureC = training.Float(float64(rec.Temperature))
	}
	if d := rec.GetDistanceScaled(); isFinite(d) && d >= 0 {
		s.DistanceM = training.Float(d)
	}
	return s
}

func extractSpeed(rec *fit.RecordMsg) (float64, bool) {
	speed := rec.GetEnhancedSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return speed, true
	}
	speed = rec.GetSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return speed, true
	}
	return 0, false
}

func extractAltitude(rec *fit.RecordMsg) (float64, bool) {
	alt := rec.GetEnhancedAltitudeScaled()
	if isFinite(alt) {
		return alt, true
	}
	alt = rec.GetAltitudeScaled()
	if isFinite(alt) {
		return alt, true
	}
	return 0, false
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func uint8Ptr(v uint8) *int {
	if v == math.MaxUint8 {
		return nil
	}
	return training.Int(int(v))
}

func uint16Ptr(v uint16) *int {
	if v == math.MaxUint16 {
		return nil
	}
	return training.Int(int(v))
}

func cadenceFromAny(v any) (int, bool) {
	switch x := v.(type) {
	case uint8:
		if x == math.MaxUint8 {
			return 0, false
		}
		return int(x), true
	case uint16:
		if x == math.MaxUint16 {
			return 0, false
		}
		return int(x), true
	case int:
		return x, x >= 0
	case float64:
		return int(math.Round(x)), isFinite(x) && x >= 0
	default:
		return 0, false
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// maxUTCOffset bounds the offsets real time zones use.
const maxUTCOffset = 14 * time.Hour

// localZone derives the device's UTC offset from the activity message, whose local_timestamp
// is the wall-clock reading at the UTC timestamp.
func localZone(msg *fit.ActivityMsg) (*time.Location, bool) {
	if msg == nil {
		return nil, false
	}
	utc := validTimeOrZero(msg.Timestamp)
	local := validTimeOrZero(msg.LocalTimestamp)
	if utc.IsZero() || local.IsZero() {
		return nil, false
	}
	wall := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
	offset := wall.Sub(utc.UTC()).Round(time.Minute)
	if offset < -maxUTCOffset || offset > maxUTCOffset {
		return nil, false
	}
	return time.FixedZone("", int(offset/time.Second)), true
}
