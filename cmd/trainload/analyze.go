package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	trainingload "github.com/lucasjlepore/trainingload"
	"github.com/lucasjlepore/trainingload/extract"
	"github.com/lucasjlepore/trainingload/pipeline"
)

type analyzeFlags struct {
	ftp              float64
	requireThreshold bool
	outDir           string
	format           string
	overwrite        bool
	copySource       bool
	jsonOut          bool
	save             bool
	workers          int
	skipFailures     bool
	timeout          time.Duration
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze <file.fit[.gz]>...",
		Short: "Analyze workout files against the threshold history",
		Long: `Decode FIT workouts (raw or gzip-compressed), resolve the threshold in effect on
each workout date and print NP, IF, VI and TSS with power-zone distribution.

With --out, each workout is written as samples.{parquet|csv}, workout.json, notes.md and
manifest.json. Several files get one subdirectory each, named after the file.

EXAMPLES:

  trainload analyze ride.fit
  trainload analyze ride.fit --ftp 265 --json
  trainload analyze a.fit b.fit.gz --out out --format csv
  trainload analyze rides/*.fit --save --skip-failures`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args, f)
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.ftp, "ftp", 0, "FTP in watts (bypasses threshold resolution)")
	fl.BoolVar(&f.requireThreshold, "require-threshold", false, "fail when no valid cycling threshold applies")
	fl.StringVarP(&f.outDir, "out", "o", "", "write artifacts to this directory")
	fl.StringVar(&f.format, "format", "", "sample format: parquet|csv (default output.format)")
	fl.BoolVar(&f.overwrite, "overwrite", false, "allow writing into non-empty output directories")
	fl.BoolVar(&f.copySource, "copy-source", true, "copy the source file next to the artifacts")
	fl.BoolVar(&f.jsonOut, "json", false, "print analyses as JSON")
	fl.BoolVar(&f.save, "save", false, "store the workouts in the database")
	fl.IntVar(&f.workers, "workers", 0, "concurrent decodes (0 = GOMAXPROCS)")
	fl.BoolVar(&f.skipFailures, "skip-failures", false, "skip files that fail to parse")
	fl.DurationVar(&f.timeout, "timeout", 0, "per-file decode timeout (0 = none)")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, paths []string, f analyzeFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	analysisCfg, err := a.analysisConfig(ctx, f.ftp, f.requireThreshold)
	if err != nil {
		return err
	}

	var analyses []*trainingload.Analysis
	if f.outDir != "" {
		format := f.format
		if format == "" {
			format = a.cfg.Output.Format
		}
		for _, path := range paths {
			dir := f.outDir
			if len(paths) > 1 {
				dir = filepath.Join(f.outDir, fileStem(path))
			}
			res, err := pipeline.Run(ctx, pipeline.Options{
				FitPath:    path,
				OutDir:     dir,
				Format:     format,
				Overwrite:  f.overwrite,
				CopySource: f.copySource,
				Timeout:    f.timeout,
				Analysis:   analysisCfg,
				Logger:     a.log,
			})
			if err != nil {
				if f.skipFailures && extract.IsParseError(err) {
					printWarning(out, "skipping %s: %v", path, err)
					continue
				}
				return err
			}
			analyses = append(analyses, res.Analysis)
			fmt.Fprintf(out, "%s -> %s\n", path, res.OutputDir)
		}
	} else {
		analyses, err = pipeline.AnalyzeAll(ctx, paths, pipeline.BatchOptions{
			Analysis:     analysisCfg,
			Workers:      f.workers,
			Timeout:      f.timeout,
			SkipFailures: f.skipFailures,
			Logger:       a.log,
		})
		if err != nil {
			return err
		}
	}
	analyses = compact(analyses)

	if f.save {
		st, err := a.requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		for _, an := range analyses {
			if err := st.SaveWorkout(ctx, &an.Workout); err != nil {
				return fmt.Errorf("save %s: %w", an.FilePath, err)
			}
		}
		a.log.Info("workouts saved", "count", len(analyses))
	}

	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analyses)
	}
	if f.outDir != "" {
		return nil
	}
	for i, an := range analyses {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if len(analyses) > 1 {
			color.New(color.Bold).Fprintln(out, an.FilePath)
		}
		fmt.Fprintln(out, an.Notes)
		for _, w := range an.Warnings {
			printWarning(out, "%s", w)
		}
	}
	return nil
}

func printWarning(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprintf(w, "warning: "+format+"\n", args...)
}

func compact(analyses []*trainingload.Analysis) []*trainingload.Analysis {
	out := analyses[:0]
	for _, an := range analyses {
		if an != nil {
			out = append(out, an)
		}
	}
	return out
}

func fileStem(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, suffix := range []string{".gz", ".fit", ".tcx", ".gpx"} {
		if strings.HasSuffix(lower, suffix) {
			base, lower = base[:len(base)-len(suffix)], lower[:len(lower)-len(suffix)]
		}
	}
	return base
}
