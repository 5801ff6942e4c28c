// Package thresholds resolves the date-versioned athlete threshold in effect for a workout.
package thresholds

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/lucasjlepore/trainingload/training"
)

var (
	ErrThresholdNotFound = errors.New("threshold not found")
	ErrInvalidThreshold  = errors.New("invalid threshold")
)

// ThresholdError carries the date and field context of a failed threshold check.
type ThresholdError struct {
	Sport         string
	WorkoutDate   civil.Date
	EffectiveDate civil.Date
	Field         string
	Value         any
	Err           error
}

func (e *ThresholdError) Error() string {
	if errors.Is(e.Err, ErrThresholdNotFound) {
		return fmt.Sprintf("no %s threshold found for workout on %s", e.Sport, e.WorkoutDate)
	}
	return fmt.Sprintf("%s threshold on %s has invalid %s: %v", e.Sport, e.EffectiveDate, e.Field, e.Value)
}

func (e *ThresholdError) Unwrap() error { return e.Err }

// Resolver picks the threshold in effect on a given date.
type Resolver struct {
	// PreferUserOverride returns the most recent user override among the candidates
	// dated on or before the workout, even if a later non-override candidate exists.
	PreferUserOverride bool
}

// NewResolver returns a resolver with override preference enabled.
func NewResolver() Resolver {
	return Resolver{PreferUserOverride: true}
}

// Resolve returns the record for athleteID and sport whose effective date is the latest
// one not after workoutDate. ok is false when no record qualifies.
func (r Resolver) Resolve(athleteID int64, sport string, workoutDate civil.Date, history []training.AthleteThreshold) (training.AthleteThreshold, bool) {
	candidates := make([]training.AthleteThreshold, 0, len(history))
	for _, t := range history {
		if t.AthleteID != athleteID || !sportMatches(t.Sport, sport) {
			continue
		}
		if t.EffectiveDate.After(workoutDate) {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return training.AthleteThreshold{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].EffectiveDate.After(candidates[j].EffectiveDate)
	})

	if r.PreferUserOverride {
		for _, t := range candidates {
			if t.IsUserOverride {
				return t, true
			}
		}
	}
	return candidates[0], true
}

// Require resolves a threshold and validates it for TSS computation in one step.
func (r Resolver) Require(athleteID int64, sport string, workoutDate civil.Date, history []training.AthleteThreshold) (training.AthleteThreshold, error) {
	t, ok := r.Resolve(athleteID, sport, workoutDate, history)
	var found *training.AthleteThreshold
	if ok {
		found = &t
	}
	if err := ValidateForTSS(found, sport, workoutDate); err != nil {
		return training.AthleteThreshold{}, err
	}
	return t, nil
}

// ForDate resolves with override preference enabled.
func ForDate(athleteID int64, sport string, workoutDate civil.Date, history []training.AthleteThreshold) (training.AthleteThreshold, bool) {
	return NewResolver().Resolve(athleteID, sport, workoutDate, history)
}

// ValidateForTSS checks that t exists and carries a positive sport-specific reference value.
// Sports outside cycling, running and swimming only need a record to exist.
func ValidateForTSS(t *training.AthleteThreshold, sport string, workoutDate civil.Date) error {
	if t == nil {
		return &ThresholdError{Sport: sport, WorkoutDate: workoutDate, Err: ErrThresholdNotFound}
	}
	invalid := func(field string, value any) error {
		return &ThresholdError{
			Sport:         sport,
			WorkoutDate:   workoutDate,
			EffectiveDate: t.EffectiveDate,
			Field:         field,
			Value:         value,
			Err:           ErrInvalidThreshold,
		}
	}

	switch training.NormalizeSport(sport) {
	case training.SportCycling:
		if t.FTP == nil || *t.FTP <= 0 {
			return invalid("ftp", derefInt(t.FTP))
		}
	case training.SportRunning:
		if t.ThresholdPaceMinPerKM == nil || *t.ThresholdPaceMinPerKM <= 0 {
			return invalid("threshold_pace_min_per_km", derefFloat(t.ThresholdPaceMinPerKM))
		}
	case training.SportSwimming:
		if t.ThresholdPace100mS == nil || *t.ThresholdPace100mS <= 0 {
			return invalid("threshold_pace_100m_s", derefFloat(t.ThresholdPace100mS))
		}
	}
	return nil
}

// Value returns the sport-specific reference value of t: FTP in watts for cycling,
// threshold pace in min/km for running, CSS in s/100m for swimming.
func Value(t training.AthleteThreshold, sport string) (float64, bool) {
	switch training.NormalizeSport(sport) {
	case training.SportCycling:
		if t.FTP != nil {
			return float64(*t.FTP), true
		}
	case training.SportRunning:
		if t.ThresholdPaceMinPerKM != nil {
			return *t.ThresholdPaceMinPerKM, true
		}
	case training.SportSwimming:
		if t.ThresholdPace100mS != nil {
			return *t.ThresholdPace100mS, true
		}
	}
	return 0, false
}

// sportMatches compares case-insensitively and also accepts platform aliases such as "ride".
func sportMatches(recorded training.Sport, query string) bool {
	if strings.EqualFold(string(recorded), strings.TrimSpace(query)) {
		return true
	}
	n := training.NormalizeSport(query)
	return n != training.SportOther && n == training.NormalizeSport(string(recorded))
}

func derefInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
