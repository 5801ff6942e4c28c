package load

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/lucasjlepore/trainingload/training"
)

// Recovery holds the optional markers an external source reports for one day.
type Recovery struct {
	Date             civil.Date `json:"date" yaml:"date"`
	RHR              *int       `json:"rhr,omitempty" yaml:"rhr,omitempty"`
	HRV              *float64   `json:"hrv,omitempty" yaml:"hrv,omitempty"`
	SleepScore       *float64   `json:"sleep_score,omitempty" yaml:"sleep_score,omitempty"`
	SleepDurationMin *int       `json:"sleep_duration_min,omitempty" yaml:"sleep_duration_min,omitempty"`
	RPE              *int       `json:"rpe,omitempty" yaml:"rpe,omitempty"`
	Notes            string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// AttachRecovery copies recovery markers onto the matching days of series, in place.
// Markers for dates outside the series are ignored. Each merged day is re-validated.
func AttachRecovery(series []training.MetricsDaily, markers []Recovery) error {
	index := make(map[civil.Date]int, len(series))
	for i, m := range series {
		index[m.MetricDate] = i
	}
	for _, r := range markers {
		i, ok := index[r.Date]
		if !ok {
			continue
		}
		day := series[i]
		if r.RHR != nil {
			day.RHR = r.RHR
		}
		if r.HRV != nil {
			day.HRV = r.HRV
		}
		if r.SleepScore != nil {
			day.SleepScore = r.SleepScore
		}
		if r.SleepDurationMin != nil {
			day.SleepDurationMin = r.SleepDurationMin
		}
		if r.RPE != nil {
			day.RPE = r.RPE
		}
		if r.Notes != "" {
			day.Notes = r.Notes
		}
		if err := day.Validate(); err != nil {
			return fmt.Errorf("recovery markers for %s: %w", r.Date, err)
		}
		series[i] = day
	}
	return nil
}
