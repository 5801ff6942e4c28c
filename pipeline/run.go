// Package pipeline runs analyses end to end and writes their artifacts to disk.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	trainingload "github.com/lucasjlepore/trainingload"
	"github.com/lucasjlepore/trainingload/extract"
	"github.com/lucasjlepore/trainingload/logging"
)

// FormatVersion identifies the on-disk layout of analysis outputs.
const FormatVersion = "trainingload_v1"

// Run analyzes one workout file and writes:
//   - samples.parquet or samples.csv
//   - workout.json
//   - notes.md
//   - manifest.json
//   - source file copy (optional)
func Run(ctx context.Context, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.FitPath) == "" {
		return nil, fmt.Errorf("fit path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return nil, fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	log := logging.OrNop(opts.Logger).With("path", opts.FitPath)

	started := time.Now()
	res, err := Extract(ctx, opts.FitPath, opts.Analysis.AthleteID, opts.Timeout)
	if err != nil {
		log.Warn("extract failed", "error", err)
		return nil, err
	}
	analysis, err := trainingload.Analyze(res, opts.Analysis)
	if err != nil {
		return nil, fmt.Errorf("analyze workout: %w", err)
	}
	for _, w := range analysis.Warnings {
		log.Warn("analysis warning", "workout_id", analysis.Workout.ID, "warning", w)
	}

	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}

	samplesPath := filepath.Join(opts.OutDir, "samples."+format)
	switch format {
	case "csv":
		if err := writeSamplesCSV(samplesPath, analysis.Samples); err != nil {
			return nil, fmt.Errorf("write samples csv: %w", err)
		}
	case "parquet":
		if err := writeSamplesParquet(samplesPath, analysis.Samples); err != nil {
			return nil, fmt.Errorf("write samples parquet: %w", err)
		}
	}

	workoutPath := filepath.Join(opts.OutDir, "workout.json")
	if err := writeJSON(workoutPath, analysis); err != nil {
		return nil, fmt.Errorf("write workout.json: %w", err)
	}

	notesPath := filepath.Join(opts.OutDir, "notes.md")
	if err := writeText(notesPath, analysis.Notes); err != nil {
		return nil, fmt.Errorf("write notes.md: %w", err)
	}

	sourceCopyPath := ""
	if opts.CopySource {
		sourceCopyPath = filepath.Join(opts.OutDir, "source"+sourceSuffix(opts.FitPath))
		if err := copyFile(opts.FitPath, sourceCopyPath); err != nil {
			return nil, fmt.Errorf("copy source file: %w", err)
		}
	}

	sha, size, err := hashFile(opts.FitPath)
	if err != nil {
		return nil, fmt.Errorf("hash source file: %w", err)
	}
	manifest := Manifest{
		FormatVersion:   FormatVersion,
		GeneratedAt:     time.Now().UTC(),
		SourceFile:      opts.FitPath,
		SourceSHA256:    sha,
		SourceSizeBytes: size,
		WorkoutID:       analysis.Workout.ID.String(),
		SampleRows:      len(analysis.Samples),
		Artifacts:       []string{filepath.Base(samplesPath), filepath.Base(workoutPath), filepath.Base(notesPath)},
	}
	if !extract.IsGzip(opts.FitPath) {
		manifest.FileID = projectFileID(opts.FitPath)
	}
	if sourceCopyPath != "" {
		manifest.Artifacts = append(manifest.Artifacts, filepath.Base(sourceCopyPath))
	}
	if err := writeJSON(filepath.Join(opts.OutDir, "manifest.json"), manifest); err != nil {
		return nil, fmt.Errorf("write manifest.json: %w", err)
	}

	log.Info("workout analyzed",
		"workout_id", analysis.Workout.ID,
		"sport", analysis.Workout.Sport,
		"samples", len(analysis.Samples),
		"ftp_source", analysis.FTPSource,
		"elapsed", time.Since(started),
	)

	return &Result{
		OutputDir:      opts.OutDir,
		SamplesPath:    samplesPath,
		WorkoutPath:    workoutPath,
		NotesPath:      notesPath,
		SourceCopyPath: sourceCopyPath,
		Analysis:       analysis,
	}, nil
}

// Extract decodes path under ctx, optionally bounded by timeout. The decode itself is not
// interruptible; on cancellation the caller stops waiting and the result is discarded.
func Extract(ctx context.Context, path string, athleteID int64, timeout time.Duration) (*extract.Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type outcome struct {
		res *extract.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := extract.ParseFile(path, extract.Options{AthleteID: athleteID})
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("extract %s: %w", path, ctx.Err())
	case out := <-done:
		return out.res, out.err
	}
}

func sourceSuffix(path string) string {
	if extract.IsGzip(path) {
		return ".fit.gz"
	}
	return ".fit"
}
