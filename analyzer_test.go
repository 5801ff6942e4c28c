package trainingload

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"

	"github.com/lucasjlepore/trainingload/internal/fittest"
	"github.com/lucasjlepore/trainingload/load"
	"github.com/lucasjlepore/trainingload/thresholds"
	"github.com/lucasjlepore/trainingload/training"
)

var rideStart = time.Date(2024, 7, 15, 6, 0, 0, 0, time.UTC)

func writeSteadyRide(t *testing.T, start time.Time, n int, watts uint16) string {
	t.Helper()
	return fittest.WriteFile(t, t.TempDir(), "ride.fit", fittest.Ride{
		Start:   start,
		Seconds: n,
		Watts:   watts,
		HR:      140,
		Sport:   fit.SportCycling,
	})
}

func threshold(date civil.Date, ftp int, override bool) training.AthleteThreshold {
	return training.AthleteThreshold{
		AthleteID:      1,
		Sport:          training.SportCycling,
		EffectiveDate:  date,
		FTP:            training.Int(ftp),
		IsUserOverride: override,
	}
}

func TestAnalyzeFileResolvesThreshold(t *testing.T) {
	path := writeSteadyRide(t, rideStart, 3601, 250)

	cfg := DefaultConfig(1)
	cfg.Thresholds = []training.AthleteThreshold{
		threshold(civil.Date{Year: 2024, Month: time.January, Day: 1}, 200, false),
		threshold(civil.Date{Year: 2024, Month: time.June, Day: 1}, 250, false),
	}

	a, err := AnalyzeFile(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, FTPSourceThreshold, a.FTPSource)
	assert.Equal(t, 250.0, a.FTPWatts)
	require.NotNil(t, a.Threshold)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.June, Day: 1}, a.Threshold.EffectiveDate)

	s := a.Workout.Summary
	require.NotNil(t, s.TSS)
	assert.InDelta(t, 100.0, *s.TSS, 1e-9)
	require.NotNil(t, s.IF)
	assert.InDelta(t, 1.0, *s.IF, 1e-9)
	assert.Empty(t, a.Warnings)
	require.Len(t, a.PowerZones, 7)
	assert.Equal(t, 3601.0, a.PowerZones[3].Seconds)
	assert.Contains(t, a.Notes, "TSS 100")
	assert.Contains(t, a.Notes, "FTP 250 W (threshold)")
}

func TestAnalyzeFilePrefersOverride(t *testing.T) {
	path := writeSteadyRide(t, rideStart, 120, 200)

	cfg := DefaultConfig(1)
	cfg.Thresholds = []training.AthleteThreshold{
		threshold(civil.Date{Year: 2024, Month: time.June, Day: 1}, 265, false),
		threshold(civil.Date{Year: 2024, Month: time.June, Day: 2}, 270, true),
	}
	a, err := AnalyzeFile(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, 270.0, a.FTPWatts)
	assert.Contains(t, a.Notes, "user override")
}

func TestAnalyzeFileWithoutThreshold(t *testing.T) {
	path := writeSteadyRide(t, rideStart, 120, 200)

	a, err := AnalyzeFile(path, DefaultConfig(1))
	require.NoError(t, err)
	assert.Equal(t, FTPSourceUnavailable, a.FTPSource)
	assert.Nil(t, a.Workout.Summary.TSS)
	assert.NotNil(t, a.Workout.Summary.NP)
	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], "no cycling threshold found for workout on 2024-07-15")

	cfg := DefaultConfig(1)
	cfg.RequireThreshold = true
	cfg.Thresholds = []training.AthleteThreshold{threshold(civil.Date{Year: 2024, Month: time.June, Day: 1}, 0, false)}
	_, err = AnalyzeFile(path, cfg)
	assert.True(t, errors.Is(err, thresholds.ErrInvalidThreshold))
}

func TestAnalyzeFileFTPInput(t *testing.T) {
	path := writeSteadyRide(t, rideStart, 1801, 300)

	cfg := DefaultConfig(1)
	cfg.FTPWatts = 300
	a, err := AnalyzeFile(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, FTPSourceInput, a.FTPSource)
	require.NotNil(t, a.Workout.Summary.TSS)
	assert.InDelta(t, 50.0, *a.Workout.Summary.TSS, 1e-9)
}

func TestDailyLoadFromAnalyses(t *testing.T) {
	cfg := DefaultConfig(1)
	cfg.FTPWatts = 250

	first, err := AnalyzeFile(writeSteadyRide(t, rideStart, 3601, 250), cfg)
	require.NoError(t, err)
	second, err := AnalyzeFile(writeSteadyRide(t, rideStart.AddDate(0, 0, 3), 3601, 250), cfg)
	require.NoError(t, err)

	series, err := DailyLoad([]*Analysis{second, nil, first}, load.DefaultConstants())
	require.NoError(t, err)
	require.Len(t, series, 4)
	assert.InDelta(t, 100.0, series[0].TSS, 1e-9)
	assert.Equal(t, 0.0, series[1].TSS)
	assert.InDelta(t, 100.0, series[3].TSS, 1e-9)

	notes := BuildLoadNotes(series)
	assert.Contains(t, notes, "Range: 2024-07-15 to 2024-07-18 (4 days)")
	assert.Contains(t, notes, "Total TSS: 200")
	assert.Equal(t, "No training load data.", BuildLoadNotes(nil))
}
