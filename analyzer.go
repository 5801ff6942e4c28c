// Package trainingload analyzes workout files against an athlete's threshold history
// and rolls workouts up into a daily training-load series.
package trainingload

import (
	"fmt"

	"github.com/lucasjlepore/trainingload/extract"
	"github.com/lucasjlepore/trainingload/load"
	"github.com/lucasjlepore/trainingload/metrics"
	"github.com/lucasjlepore/trainingload/thresholds"
	"github.com/lucasjlepore/trainingload/training"
)

// FTP sources reported in Analysis.FTPSource.
const (
	FTPSourceInput       = "input"
	FTPSourceThreshold   = "threshold"
	FTPSourceUnavailable = "unavailable"
)

// Config controls threshold lookup for one analysis.
type Config struct {
	AthleteID int64

	// FTPWatts bypasses threshold resolution when positive.
	FTPWatts float64

	// Thresholds is the athlete's full threshold history.
	Thresholds []training.AthleteThreshold
	Resolver   thresholds.Resolver

	// RequireThreshold turns a missing or invalid cycling threshold into an error
	// instead of a warning.
	RequireThreshold bool
}

// DefaultConfig prefers user overrides during threshold resolution.
func DefaultConfig(athleteID int64) Config {
	return Config{AthleteID: athleteID, Resolver: thresholds.NewResolver()}
}

// Analysis is one decoded workout with its resolved threshold and derived metrics.
type Analysis struct {
	FilePath   string                     `json:"file_path"`
	Workout    training.WorkoutExecuted   `json:"workout"`
	Session    extract.SessionSummary     `json:"session"`
	Samples    []training.Sample          `json:"-"`
	Threshold  *training.AthleteThreshold `json:"threshold,omitempty"`
	FTPWatts   float64                    `json:"ftp_watts"`
	FTPSource  string                     `json:"ftp_source"`
	PowerZones []metrics.ZoneDuration     `json:"power_zones,omitempty"`
	Warnings   []string                   `json:"warnings,omitempty"`
	Notes      string                     `json:"notes"`
}

// AnalyzeFile decodes a FIT file, resolves the threshold in effect on the workout date
// and computes the workout summary against it.
func AnalyzeFile(path string, cfg Config) (*Analysis, error) {
	res, err := extract.ParseFile(path, extract.Options{AthleteID: cfg.AthleteID})
	if err != nil {
		return nil, err
	}
	return analyze(path, res, cfg)
}

// Analyze runs threshold resolution and summary assembly over an already extracted workout.
func Analyze(res *extract.Result, cfg Config) (*Analysis, error) {
	return analyze(res.Workout.FileRef, res, cfg)
}

func analyze(path string, res *extract.Result, cfg Config) (*Analysis, error) {
	a := &Analysis{
		FilePath:  path,
		Workout:   res.Workout,
		Session:   res.Session,
		Samples:   res.Samples,
		FTPSource: FTPSourceUnavailable,
	}

	sport := string(res.Workout.Sport)
	date := res.Workout.Date()

	switch {
	case cfg.FTPWatts > 0:
		a.FTPWatts = cfg.FTPWatts
		a.FTPSource = FTPSourceInput
	case res.Workout.Sport == training.SportCycling:
		t, err := cfg.Resolver.Require(cfg.AthleteID, sport, date, cfg.Thresholds)
		if err != nil {
			if cfg.RequireThreshold {
				return nil, fmt.Errorf("resolve threshold: %w", err)
			}
			a.Warnings = append(a.Warnings, err.Error())
			break
		}
		ftp, _ := thresholds.Value(t, sport)
		a.Threshold = &t
		a.FTPWatts = ftp
		a.FTPSource = FTPSourceThreshold
	default:
		if t, ok := cfg.Resolver.Resolve(cfg.AthleteID, sport, date, cfg.Thresholds); ok {
			a.Threshold = &t
		}
	}

	if a.FTPWatts > 0 {
		ftp := a.FTPWatts
		a.Workout.Summary = extract.Summarize(res.Samples, res.Session, &ftp)
		a.PowerZones = metrics.PowerZones(res.Samples, ftp)
	}
	a.Warnings = append(a.Warnings, a.Workout.Summary.Errors...)
	a.Notes = BuildTrainingNotes(a)
	return a, nil
}

// DailyLoad converts analyzed workouts into the continuous daily load series.
func DailyLoad(analyses []*Analysis, c load.Constants) ([]training.MetricsDaily, error) {
	workouts := make([]training.WorkoutExecuted, 0, len(analyses))
	for _, a := range analyses {
		if a == nil {
			continue
		}
		workouts = append(workouts, a.Workout)
	}
	return load.ComputeFromWorkouts(workouts, c)
}
