package main

import (
	"fmt"
	"io"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lucasjlepore/trainingload/config"
	"github.com/lucasjlepore/trainingload/thresholds"
	"github.com/lucasjlepore/trainingload/training"
)

func newThresholdCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "threshold",
		Aliases: []string{"thresholds", "th"},
		Short:   "Inspect and import the athlete threshold history",
	}
	cmd.AddCommand(
		newThresholdResolveCmd(a),
		newThresholdHistoryCmd(a),
		newThresholdProgressionCmd(a),
		newThresholdImportCmd(a),
	)
	return cmd
}

func newThresholdResolveCmd(a *app) *cobra.Command {
	var sport, date string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the threshold in effect for a workout date",
		Long: `Resolve the record whose effective date is the latest one on or before --date.
Unless thresholds.prefer_user_override is false, the most recent user override among
those candidates wins over a later imported value.

EXAMPLES:

  trainload threshold resolve --sport cycling --date 2024-07-15
  trainload threshold resolve --sport run --date 2024-03-02 --thresholds history.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			day, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			if day.IsZero() {
				day = civil.DateOf(timeNow())
			}
			history, err := a.thresholdHistory(ctx)
			if err != nil {
				return err
			}

			t, ok := a.cfg.Resolver().Resolve(a.athleteID, sport, day, history)
			if !ok {
				return thresholds.ValidateForTSS(nil, sport, day)
			}
			out := cmd.OutOrStdout()
			printThreshold(out, t, sport)
			if err := thresholds.ValidateForTSS(&t, sport, day); err != nil {
				printWarning(out, "%v", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sport, "sport", string(training.SportCycling), "cycling|running|swimming or a platform alias")
	cmd.Flags().StringVar(&date, "date", "", "workout date YYYY-MM-DD (default today)")
	return cmd
}

func newThresholdHistoryCmd(a *app) *cobra.Command {
	var sport string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the threshold history for one sport",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := a.thresholdHistory(cmd.Context())
			if err != nil {
				return err
			}
			entries := thresholds.History(a.athleteID, sport, history)
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No %s thresholds for athlete %d.\n", sport, a.athleteID)
				return nil
			}
			faint := color.New(color.Faint)
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-8s %s%s\n",
					e.EffectiveDate, historyValue(e), faint.Sprint(e.Source), overrideMark(e.IsUserOverride))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sport, "sport", string(training.SportCycling), "cycling|running|swimming or a platform alias")
	return cmd
}

func newThresholdProgressionCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "progression",
		Short: "Show FTP changes between tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}
			hi, err := parseDateFlag("to", to)
			if err != nil {
				return err
			}
			history, err := a.thresholdHistory(cmd.Context())
			if err != nil {
				return err
			}

			rows := thresholds.FTPProgression(a.athleteID, history, lo, hi)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "FTP progression, %s (%d tests)\n", dateRange(lo, hi), len(rows))
			for _, r := range rows {
				line := fmt.Sprintf("%s  %5s W", r.EffectiveDate, intString(r.FTP))
				if r.ChangeWatts != nil {
					change := fmt.Sprintf("%+.0f W", *r.ChangeWatts)
					if r.ChangePct != nil {
						change += fmt.Sprintf(" (%+.1f%%)", *r.ChangePct)
					}
					if *r.ChangeWatts >= 0 {
						change = color.GreenString(change)
					} else {
						change = color.RedString(change)
					}
					line += "  " + change
				}
				if r.DaysSinceLastTest != nil {
					line += fmt.Sprintf("  after %d days", *r.DaysSinceLastTest)
				}
				fmt.Fprintln(out, line+overrideMark(r.IsUserOverride))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first effective date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last effective date (YYYY-MM-DD)")
	return cmd
}

func newThresholdImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <thresholds.yaml>",
		Short: "Validate a YAML threshold history and store it in the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			records, err := config.LoadThresholds(args[0])
			if err != nil {
				return err
			}
			st, err := a.requireStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			for _, t := range records {
				if _, err := st.SaveThreshold(ctx, t); err != nil {
					return err
				}
			}
			a.log.Info("thresholds imported", "path", args[0], "records", len(records))
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d threshold records into %s\n", len(records), st.Path())
			return nil
		},
	}
}

func printThreshold(w io.Writer, t training.AthleteThreshold, sport string) {
	value := "n/a"
	if v, ok := thresholds.Value(t, sport); ok {
		switch training.NormalizeSport(sport) {
		case training.SportCycling:
			value = fmt.Sprintf("FTP %.0f W", v)
		case training.SportRunning:
			value = fmt.Sprintf("threshold pace %.2f min/km", v)
		case training.SportSwimming:
			value = fmt.Sprintf("CSS %.0f s/100m", v)
		}
	}
	fmt.Fprintf(w, "%s %s (effective %s)%s\n",
		training.NormalizeSport(sport), value, t.EffectiveDate, overrideMark(t.IsUserOverride))
}

func historyValue(e thresholds.HistoryEntry) string {
	switch {
	case e.FTP != nil:
		return strconv.Itoa(*e.FTP) + " W"
	case e.ThresholdPaceMinPerKM != nil:
		return strconv.FormatFloat(*e.ThresholdPaceMinPerKM, 'f', 2, 64) + " min/km"
	case e.ThresholdPace100mS != nil:
		return strconv.FormatFloat(*e.ThresholdPace100mS, 'f', 0, 64) + " s/100m"
	default:
		return "-"
	}
}

func overrideMark(override bool) string {
	if !override {
		return ""
	}
	return color.CyanString("  [override]")
}

func intString(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func dateRange(from, to civil.Date) string {
	switch {
	case from.IsZero() && to.IsZero():
		return "all dates"
	case from.IsZero():
		return "through " + to.String()
	case to.IsZero():
		return "from " + from.String()
	default:
		return from.String() + " to " + to.String()
	}
}
