package metrics

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/lucasjlepore/trainingload/training"
)

// Extra metric keys written by Summarize.
const (
	ExtraMaxPower        = "max_power"
	ExtraMaxHR           = "max_hr"
	ExtraWorkKJ          = "work_kj"
	ExtraBest20MinPower  = "best_20min_power"
	ExtraPowerHRDecouple = "power_hr_decoupling_pct"
)

// Summarize assembles the derived metrics of one workout from its samples.
// NP and VI need power samples; IF and TSS additionally need ftp. Each derived metric is
// guarded on its own: a failure leaves that field unset, is listed in Summary.Errors and
// is returned combined with the others. The summary is usable even when err != nil.
func Summarize(samples []training.Sample, ftp *float64) (training.Summary, error) {
	var (
		summary training.Summary
		errs    error
	)

	duration := 0
	if len(samples) > 0 {
		duration = samples[len(samples)-1].TS
	}

	power, hr := streams(samples)
	if len(power) > 0 {
		avg := average(power)
		summary.AvgPower = training.Float(avg)
		summary.SetExtra(ExtraMaxPower, maxValue(power))
		summary.SetExtra(ExtraWorkKJ, workKJ(samples))
		if best, ok := bestRollingPower(power, 20*60); ok {
			summary.SetExtra(ExtraBest20MinPower, best)
		}

		np, err := NormalizedPower(power, 1)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("np: %w", err))
		} else {
			summary.NP = training.Float(np)
			summary.VI = training.Float(VariabilityIndex(np, avg))
		}

		if ftp != nil {
			if summary.NP == nil {
				errs = multierr.Append(errs, fmt.Errorf("if: normalized power unavailable"))
				errs = multierr.Append(errs, fmt.Errorf("tss: normalized power unavailable"))
			} else {
				if v, err := IntensityFactor(np, *ftp); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("if: %w", err))
				} else {
					summary.IF = training.Float(v)
				}
				if v, err := TSSFromPower(duration, np, *ftp); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("tss: %w", err))
				} else {
					summary.TSS = training.Float(v)
				}
			}
		}
	}

	if len(hr) > 0 {
		summary.AvgHR = training.Float(average(hr))
		summary.SetExtra(ExtraMaxHR, maxValue(hr))
	}

	if pp, ph := pairedPowerHR(samples); len(pp) > 0 {
		if pct, ok := powerHRDecoupling(pp, ph); ok {
			summary.SetExtra(ExtraPowerHRDecouple, pct)
		}
	}

	for _, err := range multierr.Errors(errs) {
		summary.Errors = append(summary.Errors, err.Error())
	}
	return summary, errs
}

func streams(samples []training.Sample) (power, hr []float64) {
	for _, s := range samples {
		if s.PowerW != nil {
			power = append(power, float64(*s.PowerW))
		}
		if s.HRBPM != nil {
			hr = append(hr, float64(*s.HRBPM))
		}
	}
	return power, hr
}

func pairedPowerHR(samples []training.Sample) (power, hr []float64) {
	for _, s := range samples {
		if s.PowerW == nil || s.HRBPM == nil || *s.HRBPM <= 0 {
			continue
		}
		power = append(power, float64(*s.PowerW))
		hr = append(hr, float64(*s.HRBPM))
	}
	return power, hr
}

// workKJ integrates power over the sample offsets. Gaps longer than 5 s count as one second.
func workKJ(samples []training.Sample) float64 {
	work := 0.0
	for i := 1; i < len(samples); i++ {
		prev := samples[i-1]
		if prev.PowerW == nil {
			continue
		}
		delta := samples[i].TS - prev.TS
		if delta <= 0 || delta > 5 {
			delta = 1
		}
		work += float64(*prev.PowerW) * float64(delta)
	}
	return work / 1000.0
}
