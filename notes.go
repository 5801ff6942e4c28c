package trainingload

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/lucasjlepore/trainingload/metrics"
	"github.com/lucasjlepore/trainingload/training"
)

// BuildTrainingNotes turns an analysis into a plain-text workout summary.
func BuildTrainingNotes(a *Analysis) string {
	if a == nil {
		return ""
	}
	w := a.Workout
	s := w.Summary

	var b strings.Builder

	fmt.Fprintf(&b, "Session: %s", w.Sport)
	if a.Session.Sport != "" && !strings.EqualFold(a.Session.Sport, string(w.Sport)) {
		fmt.Fprintf(&b, " (%s)", a.Session.Sport)
	}
	b.WriteByte('\n')
	if !w.StartTime.IsZero() {
		fmt.Fprintf(&b, "Start: %s\n", w.StartTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(
		&b,
		"Duration %s | Distance %s km | Elevation +%s m\n",
		formatDuration(float64(w.DurationS)),
		humanize.CommafWithDigits(value(s.DistanceM)/1000.0, 1),
		humanize.Comma(int64(math.Round(value(s.ElevationM)))),
	)

	if s.AvgPower != nil {
		fmt.Fprintf(
			&b,
			"Power %.0f avg / %.0f NP / %.0f max W | Work %s kJ | VI %.2f\n",
			*s.AvgPower,
			value(s.NP),
			s.Extra[metrics.ExtraMaxPower],
			humanize.Comma(int64(math.Round(s.Extra[metrics.ExtraWorkKJ]))),
			value(s.VI),
		)
	} else if s.NP != nil {
		fmt.Fprintf(&b, "Power: device-reported NP %.0f W\n", *s.NP)
	}
	if s.AvgHR != nil {
		fmt.Fprintf(&b, "HR %.0f avg / %.0f max bpm\n", *s.AvgHR, s.Extra[metrics.ExtraMaxHR])
	}

	switch {
	case s.TSS != nil && s.IF != nil:
		fmt.Fprintf(&b, "Load IF %.2f | TSS %.0f | FTP %.0f W (%s)\n", *s.IF, *s.TSS, a.FTPWatts, a.FTPSource)
	case s.TSS != nil:
		fmt.Fprintf(&b, "Load TSS %.0f (device reported)\n", *s.TSS)
	default:
		b.WriteString("Load IF/TSS unavailable (no usable threshold)\n")
	}
	if a.Threshold != nil {
		fmt.Fprintf(&b, "Threshold: effective %s", a.Threshold.EffectiveDate)
		if a.Threshold.IsUserOverride {
			b.WriteString(" (user override)")
		}
		b.WriteByte('\n')
	}
	if best, ok := s.Extra[metrics.ExtraBest20MinPower]; ok {
		fmt.Fprintf(&b, "Best 20 min power: %.0f W\n", best)
	}
	if d, ok := s.Extra[metrics.ExtraPowerHRDecouple]; ok {
		if value(s.VI) <= 1.10 {
			fmt.Fprintf(&b, "Power:HR decoupling: %+.1f%%\n", d)
		} else {
			fmt.Fprintf(&b, "Power:HR decoupling: not reliable for high-variability sessions (VI %.2f)\n", value(s.VI))
		}
	}

	if len(a.PowerZones) > 0 {
		b.WriteString("\nPower Zone Distribution\n")
		for _, z := range a.PowerZones {
			if z.Seconds <= 0 {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s (%.1f%%)\n", z.Zone, formatDuration(z.Seconds), z.Percentage)
		}
	}

	if len(a.Warnings) > 0 {
		b.WriteString("\nWarnings\n")
		for _, warn := range a.Warnings {
			fmt.Fprintf(&b, "- %s\n", warn)
		}
	}

	b.WriteString("\nCoaching Notes\n- ")
	b.WriteString(coachingAssessment(s))
	b.WriteByte('\n')

	return strings.TrimSpace(b.String())
}

// BuildLoadNotes summarizes the last day of a daily load series and its 7-day CTL ramp.
func BuildLoadNotes(series []training.MetricsDaily) string {
	if len(series) == 0 {
		return "No training load data."
	}
	last := series[len(series)-1]
	total := 0.0
	for _, m := range series {
		total += m.TSS
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Range: %s to %s (%d days)\n", series[0].MetricDate, last.MetricDate, len(series))
	fmt.Fprintf(&b, "Total TSS: %s\n", humanize.CommafWithDigits(total, 0))
	fmt.Fprintf(&b, "Latest: CTL %.1f | ATL %.1f | TSB %+.1f\n", last.CTL, last.ATL, last.TSB)
	if len(series) > 7 {
		ramp := last.CTL - series[len(series)-8].CTL
		fmt.Fprintf(&b, "CTL ramp (7 days): %+.1f\n", ramp)
	}
	fmt.Fprintf(&b, "Form: %s", formState(last.TSB))
	return b.String()
}

func formState(tsb float64) string {
	switch {
	case tsb < -30:
		return "overreaching risk; schedule recovery"
	case tsb < -10:
		return "productive fatigue"
	case tsb <= 5:
		return "neutral"
	case tsb <= 25:
		return "fresh"
	default:
		return "detraining risk; load is dropping off"
	}
}

func coachingAssessment(s training.Summary) string {
	switch {
	case s.IF == nil:
		return "Set a threshold for this date to get intensity-based guidance."
	case *s.IF >= 1.0:
		return "Very hard session; follow with an easier endurance day (Z1-Z2) to consolidate adaptations."
	case *s.IF >= 0.9:
		return "High-intensity load for this duration; prioritize sleep and fueling to absorb the session."
	case *s.IF >= 0.75:
		return "Solid tempo-range load; sustainable within a normal training week."
	default:
		return "Aerobic load appears manageable and supports base development."
	}
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
