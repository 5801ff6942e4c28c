package thresholds

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/lucasjlepore/trainingload/training"
)

var ErrDuplicateEffectiveDate = errors.New("duplicate effective date")

// HistoryEntry is one record of a per-sport threshold history.
type HistoryEntry struct {
	EffectiveDate  civil.Date `json:"effective_date"`
	IsUserOverride bool       `json:"is_user_override"`
	Source         string     `json:"source,omitempty"`

	FTP                   *int     `json:"ftp,omitempty"`
	ThresholdPaceMinPerKM *float64 `json:"threshold_pace_min_per_km,omitempty"`
	CriticalSpeedMPS      *float64 `json:"critical_speed_m_per_s,omitempty"`
	ThresholdPace100mS    *float64 `json:"threshold_pace_100m_s,omitempty"`

	LTHR      *int `json:"lthr,omitempty"`
	MaxHR     *int `json:"max_hr,omitempty"`
	RestingHR *int `json:"resting_hr,omitempty"`
}

// History returns the records for athleteID and sport in ascending effective-date order,
// keeping only the fields relevant to that sport.
func History(athleteID int64, sport string, records []training.AthleteThreshold) []HistoryEntry {
	kind := training.NormalizeSport(sport)
	var out []HistoryEntry
	for _, t := range records {
		if t.AthleteID != athleteID || !sportMatches(t.Sport, sport) {
			continue
		}
		e := HistoryEntry{
			EffectiveDate:  t.EffectiveDate,
			IsUserOverride: t.IsUserOverride,
			LTHR:           t.LTHR,
			MaxHR:          t.MaxHR,
			RestingHR:      t.RestingHR,
		}
		switch kind {
		case training.SportCycling:
			e.FTP = t.FTP
			e.Source = t.FTPSource
		case training.SportRunning:
			e.ThresholdPaceMinPerKM = t.ThresholdPaceMinPerKM
			e.CriticalSpeedMPS = t.CriticalSpeedMPS
			e.Source = t.RunThresholdSource
		case training.SportSwimming:
			e.ThresholdPace100mS = t.ThresholdPace100mS
			e.Source = t.SwimThresholdSource
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveDate.Before(out[j].EffectiveDate)
	})
	return out
}

// ProgressionRow is one FTP test with its change against the previous one.
// The delta fields are nil on the first row, or when either FTP is missing.
type ProgressionRow struct {
	EffectiveDate     civil.Date `json:"effective_date"`
	FTP               *int       `json:"ftp,omitempty"`
	Source            string     `json:"source,omitempty"`
	IsUserOverride    bool       `json:"is_user_override"`
	ChangeWatts       *float64   `json:"ftp_change_watts,omitempty"`
	ChangePct         *float64   `json:"ftp_change_pct,omitempty"`
	DaysSinceLastTest *int       `json:"days_since_last_test,omitempty"`
}

// FTPProgression lists the cycling history of athleteID between from and to, inclusive.
// A zero date leaves that side unbounded. ChangePct is rounded to one decimal.
func FTPProgression(athleteID int64, records []training.AthleteThreshold, from, to civil.Date) []ProgressionRow {
	var rows []ProgressionRow
	for _, e := range History(athleteID, string(training.SportCycling), records) {
		if from != (civil.Date{}) && e.EffectiveDate.Before(from) {
			continue
		}
		if to != (civil.Date{}) && e.EffectiveDate.After(to) {
			continue
		}
		row := ProgressionRow{
			EffectiveDate:  e.EffectiveDate,
			FTP:            e.FTP,
			Source:         e.Source,
			IsUserOverride: e.IsUserOverride,
		}
		if n := len(rows); n > 0 {
			prev := rows[n-1]
			days := e.EffectiveDate.DaysSince(prev.EffectiveDate)
			row.DaysSinceLastTest = &days
			if prev.FTP != nil && e.FTP != nil {
				row.ChangeWatts = training.Float(float64(*e.FTP - *prev.FTP))
				if *prev.FTP != 0 {
					pct := float64(*e.FTP-*prev.FTP) / float64(*prev.FTP) * 100
					row.ChangePct = training.Float(math.Round(pct*10) / 10)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// CheckHistory reports the first pair of records sharing athlete, sport and effective date.
// Sport aliases count as the same sport.
func CheckHistory(records []training.AthleteThreshold) error {
	type key struct {
		athlete int64
		sport   string
		date    civil.Date
	}
	seen := make(map[key]int, len(records))
	for i, t := range records {
		k := key{t.AthleteID, SportKey(string(t.Sport)), t.EffectiveDate}
		if j, ok := seen[k]; ok {
			return fmt.Errorf("%w: records %d and %d (athlete %d, %s, %s)", ErrDuplicateEffectiveDate, j, i, t.AthleteID, k.sport, t.EffectiveDate)
		}
		seen[k] = i
	}
	return nil
}

// SportKey is the canonical form a record's sport is stored and compared under: the
// normalized sport, or the trimmed lower-case tag when it maps to no known sport.
func SportKey(sport string) string {
	if n := training.NormalizeSport(sport); n != training.SportOther {
		return string(n)
	}
	return strings.ToLower(strings.TrimSpace(sport))
}
