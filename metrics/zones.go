package metrics

import "github.com/lucasjlepore/trainingload/training"

// ZoneDuration is the time spent in one FTP-relative power zone.
type ZoneDuration struct {
	Zone       string  `json:"zone"`
	MinPctFTP  float64 `json:"min_pct_ftp"`
	MaxPctFTP  float64 `json:"max_pct_ftp"`
	Seconds    float64 `json:"seconds"`
	Percentage float64 `json:"percentage"`
}

var powerZones = []struct {
	zone     string
	min, max float64
}{
	{zone: "Z1 Active Recovery", min: 0, max: 55},
	{zone: "Z2 Endurance", min: 55, max: 75},
	{zone: "Z3 Tempo", min: 75, max: 90},
	{zone: "Z4 Threshold", min: 90, max: 105},
	{zone: "Z5 VO2", min: 105, max: 120},
	{zone: "Z6 Anaerobic", min: 120, max: 150},
	{zone: "Z7 Neuromuscular", min: 150, max: 1000},
}

// PowerZones distributes power samples across the seven Coggan zones, one second per sample.
// It returns nil without a positive ftp or power data.
func PowerZones(samples []training.Sample, ftp float64) []ZoneDuration {
	if ftp <= 0 {
		return nil
	}
	power, _ := streams(samples)
	if len(power) == 0 {
		return nil
	}

	counts := make([]int, len(powerZones))
	total := 0
	for _, p := range power {
		percent := (p / ftp) * 100.0
		for i, z := range powerZones {
			if percent >= z.min && percent < z.max {
				counts[i]++
				total++
				break
			}
		}
	}
	if total == 0 {
		return nil
	}

	out := make([]ZoneDuration, 0, len(powerZones))
	for i, z := range powerZones {
		seconds := float64(counts[i])
		out = append(out, ZoneDuration{
			Zone:       z.zone,
			MinPctFTP:  z.min,
			MaxPctFTP:  z.max,
			Seconds:    seconds,
			Percentage: (seconds / float64(total)) * 100.0,
		})
	}
	return out
}
