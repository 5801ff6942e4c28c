package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	trainingload "github.com/lucasjlepore/trainingload"
	"github.com/lucasjlepore/trainingload/config"
	"github.com/lucasjlepore/trainingload/load"
	"github.com/lucasjlepore/trainingload/pipeline"
	"github.com/lucasjlepore/trainingload/training"
)

type loadFlags struct {
	ftp          float64
	from, to     string
	recovery     string
	outDir       string
	format       string
	overwrite    bool
	save         bool
	workers      int
	skipFailures bool
	days         int
}

func newLoadCmd(a *app) *cobra.Command {
	var f loadFlags
	cmd := &cobra.Command{
		Use:   "load [file.fit[.gz]...]",
		Short: "Compute the daily ATL/CTL/TSB series",
		Long: `Build the daily training-load series from workout files and, when a database is
configured, the workouts already stored there.

Days without workouts are filled with zero TSS so ATL and CTL keep decaying. Recovery
markers (rhr, hrv, sleep_score, sleep_duration_min, rpe) from --recovery are attached by date.

EXAMPLES:

  trainload load rides/*.fit
  trainload load --from 2024-01-01 --to 2024-06-30
  trainload load new.fit --save --out out/load --format parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLoad(cmd, args, f)
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.ftp, "ftp", 0, "FTP in watts for the given files (bypasses threshold resolution)")
	fl.StringVar(&f.from, "from", "", "first stored workout date (YYYY-MM-DD)")
	fl.StringVar(&f.to, "to", "", "last stored workout date (YYYY-MM-DD)")
	fl.StringVar(&f.recovery, "recovery", "", "YAML list of per-day recovery markers")
	fl.StringVarP(&f.outDir, "out", "o", "", "write metrics_daily and load_notes.md to this directory")
	fl.StringVar(&f.format, "format", "jsonl", "series format: jsonl|csv|parquet")
	fl.BoolVar(&f.overwrite, "overwrite", false, "allow writing into non-empty output directories")
	fl.BoolVar(&f.save, "save", false, "store new workouts and the daily series in the database")
	fl.IntVar(&f.workers, "workers", 0, "concurrent decodes (0 = GOMAXPROCS)")
	fl.BoolVar(&f.skipFailures, "skip-failures", false, "skip files that fail to parse")
	fl.IntVar(&f.days, "days", 14, "number of most recent days to print (0 = all)")
	return cmd
}

func (a *app) runLoad(cmd *cobra.Command, paths []string, f loadFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	from, err := parseDateFlag("from", f.from)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", f.to)
	if err != nil {
		return err
	}

	var analyses []*trainingload.Analysis
	if len(paths) > 0 {
		analysisCfg, err := a.analysisConfig(ctx, f.ftp, false)
		if err != nil {
			return err
		}
		analyses, err = pipeline.AnalyzeAll(ctx, paths, pipeline.BatchOptions{
			Analysis:     analysisCfg,
			Workers:      f.workers,
			SkipFailures: f.skipFailures,
			Logger:       a.log,
		})
		if err != nil {
			return err
		}
		analyses = compact(analyses)
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	if f.save && st == nil {
		return fmt.Errorf("--save needs a database (set storage.path in %s)", a.configPath)
	}

	var workouts []training.WorkoutExecuted
	// Stored workouts win over a re-decoded copy of the same file.
	type key struct {
		start int64
		sport training.Sport
	}
	seen := make(map[key]bool)
	if st != nil {
		stored, err := st.Workouts(ctx, a.athleteID, from, to)
		if err != nil {
			return err
		}
		for _, w := range stored {
			seen[key{w.StartTime.Unix(), w.Sport}] = true
			workouts = append(workouts, w)
		}
	}
	for _, an := range analyses {
		w := an.Workout
		if seen[key{w.StartTime.Unix(), w.Sport}] {
			continue
		}
		if f.save {
			if err := st.SaveWorkout(ctx, &w); err != nil {
				return fmt.Errorf("save %s: %w", an.FilePath, err)
			}
		}
		workouts = append(workouts, w)
	}
	sort.SliceStable(workouts, func(i, j int) bool { return workouts[i].StartTime.Before(workouts[j].StartTime) })

	var markers []load.Recovery
	if f.recovery != "" {
		if markers, err = config.LoadRecovery(f.recovery); err != nil {
			return err
		}
	}

	res, err := pipeline.RunLoad(ctx, workouts, pipeline.LoadOptions{
		OutDir:    f.outDir,
		Format:    f.format,
		Overwrite: f.overwrite,
		AthleteID: a.athleteID,
		Constants: a.cfg.Load,
		Recovery:  markers,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}
	if f.save {
		if err := st.SaveMetricsDaily(ctx, res.Series); err != nil {
			return err
		}
	}

	printSeries(out, res.Series, f.days)
	fmt.Fprintln(out)
	fmt.Fprintln(out, trainingload.BuildLoadNotes(res.Series))
	if res.SeriesPath != "" {
		fmt.Fprintf(out, "\nseries: %s\nnotes:  %s\n", res.SeriesPath, res.NotesPath)
	}
	return nil
}

func printSeries(w io.Writer, series []training.MetricsDaily, days int) {
	if len(series) == 0 {
		return
	}
	if days > 0 && len(series) > days {
		series = series[len(series)-days:]
	}
	faint := color.New(color.Faint)
	faint.Fprintf(w, "%-10s  %6s  %6s  %6s  %7s\n", "date", "tss", "atl", "ctl", "tsb")
	for _, m := range series {
		fmt.Fprintf(w, "%-10s  %6s  %6.1f  %6.1f  %s\n",
			m.MetricDate, humanize.CommafWithDigits(m.TSS, 0), m.ATL, m.CTL, tsbString(m.TSB))
	}
}

func tsbString(tsb float64) string {
	s := fmt.Sprintf("%+7.1f", tsb)
	switch {
	case tsb > 5:
		return color.GreenString(s)
	case tsb < -10:
		return color.RedString(s)
	default:
		return s
	}
}
