package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	trainingload "github.com/lucasjlepore/trainingload"
	"github.com/lucasjlepore/trainingload/config"
	"github.com/lucasjlepore/trainingload/logging"
	"github.com/lucasjlepore/trainingload/store"
	"github.com/lucasjlepore/trainingload/training"
)

var timeNow = time.Now

// app carries the state shared by every subcommand.
type app struct {
	configPath     string
	logLevel       string
	athleteID      int64
	thresholdsPath string

	cfg *config.Config
	log *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "trainload",
		Short: "Training load and performance metrics from FIT workout files",
		Long: `trainload turns FIT workout files into per-workout effort metrics and a daily
training-load series.

  Effort    normalized power, intensity factor, variability index, TSS
  Load      ATL (7-day), CTL (42-day) and TSB from daily TSS
  History   date-versioned thresholds with user-override precedence

EXAMPLES:

  trainload threshold import thresholds.yaml
  trainload analyze ride.fit --out out/ride
  trainload load rides/*.fit.gz --recovery recovery.yaml --save
  trainload threshold resolve --sport cycling --date 2024-07-15`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", defaultConfigPath(), "YAML configuration file (missing file means defaults)")
	flags.StringVar(&a.logLevel, "log-level", "", "override log.level (debug|info|warn|error)")
	flags.Int64Var(&a.athleteID, "athlete", 1, "athlete id")
	flags.StringVar(&a.thresholdsPath, "thresholds", "", "YAML threshold history (overrides thresholds.file and the database)")

	root.AddCommand(newAnalyzeCmd(a), newLoadCmd(a), newThresholdCmd(a))
	return root
}

func defaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "trainload", "config.yaml")
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log.With("athlete_id", a.athleteID)
	return nil
}

// openStore returns nil when no database is configured.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	path := a.cfg.StoragePath()
	if path == "" {
		return nil, nil
	}
	return store.Open(ctx, path, a.log)
}

func (a *app) requireStore(ctx context.Context) (*store.Store, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("no database configured (set storage.path in %s)", a.configPath)
	}
	return st, nil
}

// thresholdHistory loads the athlete's records from --thresholds, then thresholds.file,
// then the database. No source yields an empty history.
func (a *app) thresholdHistory(ctx context.Context) ([]training.AthleteThreshold, error) {
	path := a.thresholdsPath
	if path == "" {
		path = a.cfg.Thresholds.File
	}
	if path != "" {
		records, err := config.LoadThresholds(path)
		if err != nil {
			return nil, err
		}
		a.log.Debug("thresholds loaded", "path", path, "records", len(records))
		return records, nil
	}

	st, err := a.openStore(ctx)
	if err != nil || st == nil {
		return nil, err
	}
	defer st.Close()
	return st.Thresholds(ctx, a.athleteID, "")
}

func (a *app) analysisConfig(ctx context.Context, ftp float64, requireThreshold bool) (trainingload.Config, error) {
	history, err := a.thresholdHistory(ctx)
	if err != nil {
		return trainingload.Config{}, err
	}
	cfg := trainingload.DefaultConfig(a.athleteID)
	cfg.FTPWatts = ftp
	cfg.Thresholds = history
	cfg.Resolver = a.cfg.Resolver()
	cfg.RequireThreshold = requireThreshold
	return cfg, nil
}

func parseDateFlag(name, value string) (civil.Date, error) {
	if strings.TrimSpace(value) == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		return civil.Date{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, value)
	}
	return d, nil
}
