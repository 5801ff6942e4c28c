package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	trainingload "github.com/lucasjlepore/trainingload"
	"github.com/lucasjlepore/trainingload/extract"
	"github.com/lucasjlepore/trainingload/internal/fittest"
	"github.com/lucasjlepore/trainingload/load"
	"github.com/lucasjlepore/trainingload/training"
)

var start = time.Date(2024, 7, 15, 6, 0, 0, 0, time.UTC)

func ride(seconds int, watts uint16) fittest.Ride {
	return fittest.Ride{Start: start, Seconds: seconds, Watts: watts, HR: 140, Sport: fit.SportCycling}
}

func analysisConfig() trainingload.Config {
	cfg := trainingload.DefaultConfig(7)
	cfg.FTPWatts = 250
	return cfg
}

func TestRunCSV(t *testing.T) {
	src := fittest.WriteFile(t, t.TempDir(), "ride.fit", ride(600, 250))
	outDir := filepath.Join(t.TempDir(), "out")

	res, err := Run(context.Background(), Options{
		FitPath:    src,
		OutDir:     outDir,
		Format:     "csv",
		CopySource: true,
		Analysis:   analysisConfig(),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, filepath.Join(outDir, "samples.csv"), res.SamplesPath)
	assert.Equal(t, filepath.Join(outDir, "source.fit"), res.SourceCopyPath)

	f, err := os.Open(res.SamplesPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 601)
	assert.Equal(t, "t_s", rows[0][0])
	assert.Equal(t, "power_w", rows[0][1])
	assert.Equal(t, []string{"0", "250", "140"}, rows[1][:3])

	var manifest Manifest
	raw, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, FormatVersion, manifest.FormatVersion)
	assert.Equal(t, 600, manifest.SampleRows)
	assert.Len(t, manifest.SourceSHA256, 64)
	assert.Equal(t, res.Analysis.Workout.ID.String(), manifest.WorkoutID)
	assert.Equal(t, []string{"samples.csv", "workout.json", "notes.md", "source.fit"}, manifest.Artifacts)
	require.NotNil(t, manifest.FileID)
	assert.Contains(t, manifest.FileID.Type, "Activity")

	notes, err := os.ReadFile(res.NotesPath)
	require.NoError(t, err)
	assert.Contains(t, string(notes), "FTP 250 W (input)")

	raw, err = os.ReadFile(res.WorkoutPath)
	require.NoError(t, err)
	var workout map[string]any
	require.NoError(t, json.Unmarshal(raw, &workout))
	assert.NotContains(t, workout, "Samples")
}

func TestRunParquetGzip(t *testing.T) {
	src := fittest.WriteFile(t, t.TempDir(), "ride.fit.gz", ride(120, 200))
	outDir := t.TempDir()

	res, err := Run(context.Background(), Options{
		FitPath:    src,
		OutDir:     outDir,
		CopySource: true,
		Analysis:   analysisConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "samples.parquet"), res.SamplesPath)
	assert.Equal(t, filepath.Join(outDir, "source.fit.gz"), res.SourceCopyPath)
	assert.Equal(t, int64(120), parquetRows(t, res.SamplesPath, new(sampleParquetRow)))

	var manifest Manifest
	raw, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Nil(t, manifest.FileID)
}

func TestRunRejectsBadOptions(t *testing.T) {
	src := fittest.WriteFile(t, t.TempDir(), "ride.fit", ride(10, 200))

	_, err := Run(context.Background(), Options{OutDir: t.TempDir()})
	assert.ErrorContains(t, err, "fit path is required")

	_, err = Run(context.Background(), Options{FitPath: src})
	assert.ErrorContains(t, err, "output directory is required")

	_, err = Run(context.Background(), Options{FitPath: src, OutDir: t.TempDir(), Format: "xlsx"})
	assert.ErrorContains(t, err, `unsupported format "xlsx"`)

	busy := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(busy, "keep.txt"), []byte("x"), 0o644))
	_, err = Run(context.Background(), Options{FitPath: src, OutDir: busy, Format: "csv", Analysis: analysisConfig()})
	assert.ErrorContains(t, err, "output directory is not empty")

	_, err = Run(context.Background(), Options{FitPath: src, OutDir: busy, Format: "csv", Overwrite: true, Analysis: analysisConfig()})
	assert.NoError(t, err)
}

func TestExtractHonorsContext(t *testing.T) {
	src := fittest.WriteFile(t, t.TempDir(), "ride.fit", ride(10, 200))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Extract(ctx, src, 1, 0)
	assert.True(t, errors.Is(err, context.Canceled))

	res, err := Extract(context.Background(), src, 1, time.Minute)
	require.NoError(t, err)
	assert.Len(t, res.Samples, 10)
	assert.Equal(t, int64(1), res.Workout.AthleteID)
}

func workouts() []training.WorkoutExecuted {
	day := func(offset int, tss float64) training.WorkoutExecuted {
		return training.WorkoutExecuted{
			AthleteID: 3,
			StartTime: start.AddDate(0, 0, offset),
			Sport:     training.SportCycling,
			DurationS: 3600,
			Summary:   training.Summary{TSS: training.Float(tss)},
		}
	}
	return []training.WorkoutExecuted{day(0, 80), day(2, 120), day(2, 30)}
}

func TestRunLoadJSONL(t *testing.T) {
	outDir := t.TempDir()
	res, err := RunLoad(context.Background(), workouts(), LoadOptions{
		OutDir:    outDir,
		Overwrite: true,
		AthleteID: 3,
		Recovery: []load.Recovery{
			{Date: civil.Date{Year: 2024, Month: time.July, Day: 16}, RHR: training.Int(48)},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Series, 3)
	assert.Equal(t, filepath.Join(outDir, "metrics_daily.jsonl"), res.SeriesPath)
	assert.InDelta(t, 150.0, res.Series[2].TSS, 1e-9)
	require.NotNil(t, res.Series[1].RHR)
	assert.Equal(t, 48, *res.Series[1].RHR)
	for _, day := range res.Series {
		assert.Equal(t, int64(3), day.AthleteID)
	}

	raw, err := os.ReadFile(res.SeriesPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	var first training.MetricsDaily
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, civil.Date{Year: 2024, Month: time.July, Day: 15}, first.MetricDate)
	assert.InDelta(t, 80.0, first.TSS, 1e-9)

	notes, err := os.ReadFile(res.NotesPath)
	require.NoError(t, err)
	assert.Contains(t, string(notes), "Range: 2024-07-15 to 2024-07-17 (3 days)")
}

func TestRunLoadCSVAndParquet(t *testing.T) {
	csvDir := t.TempDir()
	res, err := RunLoad(context.Background(), workouts(), LoadOptions{OutDir: csvDir, Format: "csv", Overwrite: true})
	require.NoError(t, err)
	f, err := os.Open(res.SeriesPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "metric_date", rows[0][0])
	assert.Equal(t, "2024-07-16", rows[2][0])
	assert.Equal(t, "0", rows[2][1])

	pqDir := t.TempDir()
	res, err = RunLoad(context.Background(), workouts(), LoadOptions{OutDir: pqDir, Format: "parquet", Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), parquetRows(t, res.SeriesPath, new(dailyParquetRow)))
}

func TestRunLoadWithoutOutput(t *testing.T) {
	res, err := RunLoad(context.Background(), nil, LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Series)
	assert.Empty(t, res.SeriesPath)

	_, err = RunLoad(context.Background(), workouts(), LoadOptions{Format: "xml"})
	assert.ErrorContains(t, err, `unsupported format "xml"`)

	_, err = RunLoad(context.Background(), workouts(), LoadOptions{
		Constants: load.Constants{ATLTauDays: -1, CTLTauDays: 42, FallbackIntensityFactor: 0.7},
	})
	assert.True(t, errors.Is(err, load.ErrInvalidConstants))
}

func TestAnalyzeAll(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "b.fit")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a fit file"), 0o644))
	paths := []string{
		fittest.WriteFile(t, dir, "a.fit", ride(60, 200)),
		corrupt,
		fittest.WriteFile(t, dir, "c.fit.gz", ride(90, 300)),
	}

	_, err := AnalyzeAll(context.Background(), paths, BatchOptions{Analysis: analysisConfig(), Workers: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.fit")

	out, err := AnalyzeAll(context.Background(), paths, BatchOptions{
		Analysis:     analysisConfig(),
		Workers:      2,
		SkipFailures: true,
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.NotNil(t, out[0])
	assert.Nil(t, out[1])
	require.NotNil(t, out[2])
	assert.Len(t, out[0].Samples, 60)
	assert.Len(t, out[2].Samples, 90)

	series, err := trainingload.DailyLoad(out, load.DefaultConstants())
	require.NoError(t, err)
	require.Len(t, series, 1)
}

func TestAnalyzeAllSkipsOnlyParseFailures(t *testing.T) {
	dir := t.TempDir()
	good := fittest.WriteFile(t, dir, "a.fit", ride(60, 200))
	opts := BatchOptions{Analysis: analysisConfig(), SkipFailures: true}

	_, err := AnalyzeAll(context.Background(), []string{good, filepath.Join(dir, "missing.fit")}, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)

	opts.Analysis.FTPWatts = 0
	opts.Analysis.Thresholds = nil
	opts.Analysis.RequireThreshold = true
	_, err = AnalyzeAll(context.Background(), []string{good}, opts)
	require.Error(t, err)
	assert.False(t, extract.IsParseError(err))
}

func parquetRows[T any](t *testing.T, path string, schema *T) int64 {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, schema, 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	return pr.GetNumRows()
}
