package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/trainingload/thresholds"
	"github.com/lucasjlepore/trainingload/training"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "load.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ", nil)
	assert.ErrorContains(t, err, "database path is required")
}

func TestThresholdRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cycling := training.AthleteThreshold{
		AthleteID:      1,
		Sport:          "Cycling",
		EffectiveDate:  date(2024, time.June, 1),
		FTP:            training.Int(270),
		FTPSource:      "ramp_test",
		LTHR:           training.Int(172),
		Notes:          "after block",
		IsUserOverride: true,
	}
	running := training.AthleteThreshold{
		AthleteID:             1,
		Sport:                 training.SportRunning,
		EffectiveDate:         date(2024, time.January, 1),
		ThresholdPaceMinPerKM: training.Float(4.25),
	}
	for _, rec := range []training.AthleteThreshold{cycling, running} {
		id, err := s.SaveThreshold(ctx, rec)
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	all, err := s.Thresholds(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, training.SportRunning, all[0].Sport)
	assert.Nil(t, all[0].FTP)
	require.NotNil(t, all[0].ThresholdPaceMinPerKM)
	assert.Equal(t, 4.25, *all[0].ThresholdPaceMinPerKM)

	got, err := s.Thresholds(ctx, 1, "CYCLING")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, training.SportCycling, got[0].Sport)
	assert.Equal(t, date(2024, time.June, 1), got[0].EffectiveDate)
	assert.Equal(t, 270, *got[0].FTP)
	assert.Equal(t, "ramp_test", got[0].FTPSource)
	assert.Equal(t, 172, *got[0].LTHR)
	assert.Equal(t, "after block", got[0].Notes)
	assert.True(t, got[0].IsUserOverride)

	resolved, ok := thresholds.NewResolver().Resolve(1, "cycling", date(2024, time.July, 15), all)
	require.True(t, ok)
	assert.Equal(t, 270, *resolved.FTP)

	none, err := s.Thresholds(ctx, 2, "cycling")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveThresholdRejectsDuplicatesAndInvalid(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := training.AthleteThreshold{
		AthleteID:     1,
		Sport:         training.SportCycling,
		EffectiveDate: date(2024, time.June, 1),
		FTP:           training.Int(250),
	}
	_, err := s.SaveThreshold(ctx, rec)
	require.NoError(t, err)

	rec.FTP = training.Int(260)
	_, err = s.SaveThreshold(ctx, rec)
	assert.True(t, errors.Is(err, thresholds.ErrDuplicateEffectiveDate), "got %v", err)

	rec.EffectiveDate = date(2024, time.June, 2)
	rec.FTP = training.Int(900)
	_, err = s.SaveThreshold(ctx, rec)
	var verr *training.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "ftp", verr.Field)
}

func TestSaveThresholdCanonicalizesSportAliases(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	bike := training.AthleteThreshold{
		AthleteID:     1,
		Sport:         "bike",
		EffectiveDate: date(2024, time.June, 1),
		FTP:           training.Int(250),
	}
	_, err := s.SaveThreshold(ctx, bike)
	require.NoError(t, err)

	cycling := bike
	cycling.Sport = training.SportCycling
	cycling.FTP = training.Int(300)
	_, err = s.SaveThreshold(ctx, cycling)
	assert.True(t, errors.Is(err, thresholds.ErrDuplicateEffectiveDate), "got %v", err)

	for _, sport := range []string{"cycling", "ride", "Bike"} {
		got, err := s.Thresholds(ctx, 1, sport)
		require.NoError(t, err)
		require.Len(t, got, 1, sport)
		assert.Equal(t, training.SportCycling, got[0].Sport)
		assert.Equal(t, 250, *got[0].FTP)
	}
}

func TestWorkoutRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	zone := time.FixedZone("UTC-7", -7*3600)

	first := &training.WorkoutExecuted{
		AthleteID: 1,
		Source:    "FILE",
		StartTime: time.Date(2024, 7, 14, 20, 30, 0, 0, zone),
		DurationS: 3600,
		Sport:     training.SportCycling,
		FileRef:   "ride.fit",
		Summary: training.Summary{
			NP:    training.Float(250),
			TSS:   training.Float(100),
			Extra: map[string]float64{"max_power": 410},
		},
	}
	second := &training.WorkoutExecuted{
		ID:        uuid.New(),
		AthleteID: 1,
		Source:    training.SourceStrava,
		StartTime: time.Date(2024, 7, 16, 7, 0, 0, 0, time.UTC),
		DurationS: 1800,
		Sport:     training.SportRunning,
	}
	require.NoError(t, s.SaveWorkout(ctx, first))
	require.NoError(t, s.SaveWorkout(ctx, second))
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, training.SourceFile, first.Source)

	all, err := s.Workouts(ctx, 1, civil.Date{}, civil.Date{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.True(t, first.StartTime.Equal(all[0].StartTime))
	assert.Equal(t, date(2024, time.July, 14), all[0].Date())
	assert.Equal(t, 100.0, *all[0].Summary.TSS)
	assert.Equal(t, 410.0, all[0].Summary.Extra["max_power"])
	assert.Equal(t, "ride.fit", all[0].FileRef)

	window, err := s.Workouts(ctx, 1, date(2024, time.July, 15), date(2024, time.July, 16))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, second.ID, window[0].ID)

	second.DurationS = 2000
	require.NoError(t, s.SaveWorkout(ctx, second))
	window, err = s.Workouts(ctx, 1, date(2024, time.July, 16), civil.Date{})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, 2000, window[0].DurationS)

	bad := &training.WorkoutExecuted{AthleteID: 0, Source: "file", StartTime: time.Now()}
	assert.Error(t, s.SaveWorkout(ctx, bad))
}

func TestSaveWorkoutAgainReplacesRow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	decode := func(tss float64) *training.WorkoutExecuted {
		return &training.WorkoutExecuted{
			AthleteID: 1,
			Source:    training.SourceFile,
			StartTime: time.Date(2024, 7, 15, 6, 0, 0, 0, time.UTC),
			DurationS: 3600,
			Sport:     training.SportCycling,
			Summary:   training.Summary{TSS: training.Float(tss)},
		}
	}
	first, again := decode(100), decode(101)
	require.NoError(t, s.SaveWorkout(ctx, first))
	require.NoError(t, s.SaveWorkout(ctx, again))
	assert.Equal(t, first.ID, again.ID)

	got, err := s.Workouts(ctx, 1, civil.Date{}, civil.Date{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 101.0, *got[0].Summary.TSS)

	other := decode(50)
	other.AthleteID = 2
	require.NoError(t, s.SaveWorkout(ctx, other))
	assert.NotEqual(t, first.ID, other.ID)
}

func TestMetricsDailyUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	series := []training.MetricsDaily{
		{AthleteID: 1, MetricDate: date(2024, time.July, 15), TSS: 100, ATL: 14.3, CTL: 2.4, TSB: -11.9},
		{AthleteID: 1, MetricDate: date(2024, time.July, 16), TSS: 0, ATL: 12.2, CTL: 2.3, TSB: -9.9, RHR: training.Int(48), HRV: training.Float(72.5)},
	}
	require.NoError(t, s.SaveMetricsDaily(ctx, series))

	series[1].TSS = 50
	series[1].RPE = training.Int(6)
	series = append(series, training.MetricsDaily{AthleteID: 1, MetricDate: date(2024, time.July, 17), TSS: 30})
	require.NoError(t, s.SaveMetricsDaily(ctx, series))

	got, err := s.MetricsDaily(ctx, 1, civil.Date{}, civil.Date{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, -11.9, got[0].TSB)
	assert.Equal(t, 50.0, got[1].TSS)
	assert.Equal(t, 48, *got[1].RHR)
	assert.Equal(t, 72.5, *got[1].HRV)
	assert.Equal(t, 6, *got[1].RPE)
	assert.Nil(t, got[1].SleepScore)

	window, err := s.MetricsDaily(ctx, 1, date(2024, time.July, 16), date(2024, time.July, 16))
	require.NoError(t, err)
	require.Len(t, window, 1)

	invalid := []training.MetricsDaily{{AthleteID: 1, MetricDate: date(2024, time.July, 18), RHR: training.Int(20)}}
	assert.Error(t, s.SaveMetricsDaily(ctx, invalid))
	got, err = s.MetricsDaily(ctx, 1, date(2024, time.July, 18), civil.Date{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
