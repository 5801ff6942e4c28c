package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	trainingload "github.com/lucasjlepore/trainingload"
	"github.com/lucasjlepore/trainingload/load"
	"github.com/lucasjlepore/trainingload/logging"
	"github.com/lucasjlepore/trainingload/training"
)

// RunLoad computes the daily load series for workouts and writes
// metrics_daily.{jsonl,csv,parquet} plus load_notes.md to opts.OutDir.
// An empty OutDir computes the series without writing anything. Zero Constants mean
// the defaults.
func RunLoad(ctx context.Context, workouts []training.WorkoutExecuted, opts LoadOptions) (*LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "jsonl"
	}
	if format != "jsonl" && format != "csv" && format != "parquet" {
		return nil, fmt.Errorf("unsupported format %q (expected jsonl|csv|parquet)", format)
	}
	log := logging.OrNop(opts.Logger).With("athlete_id", opts.AthleteID)

	constants := opts.Constants
	if constants == (load.Constants{}) {
		constants = load.DefaultConstants()
	}
	series, err := load.ComputeFromWorkouts(workouts, constants)
	if err != nil {
		return nil, fmt.Errorf("compute daily load: %w", err)
	}
	for i := range series {
		series[i].AthleteID = opts.AthleteID
	}
	if err := load.AttachRecovery(series, opts.Recovery); err != nil {
		return nil, err
	}

	out := &LoadResult{OutputDir: opts.OutDir, Series: series}
	if len(series) > 0 {
		log.Info("daily load computed",
			"workouts", len(workouts),
			"days", len(series),
			"from", series[0].MetricDate.String(),
			"to", series[len(series)-1].MetricDate.String(),
		)
	} else {
		log.Info("no workouts; daily load is empty")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return out, nil
	}

	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}
	out.SeriesPath = filepath.Join(opts.OutDir, "metrics_daily."+format)
	switch format {
	case "jsonl":
		err = writeJSONL(out.SeriesPath, series)
	case "csv":
		err = writeDailyCSV(out.SeriesPath, series)
	case "parquet":
		err = writeDailyParquet(out.SeriesPath, series)
	}
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", filepath.Base(out.SeriesPath), err)
	}

	out.NotesPath = filepath.Join(opts.OutDir, "load_notes.md")
	if err := writeText(out.NotesPath, trainingload.BuildLoadNotes(series)); err != nil {
		return nil, fmt.Errorf("write load_notes.md: %w", err)
	}
	return out, nil
}
