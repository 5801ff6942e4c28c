package training

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Sport is the closed sport vocabulary used across the engine.
type Sport string

const (
	SportCycling  Sport = "cycling"
	SportRunning  Sport = "running"
	SportSwimming Sport = "swimming"
	SportOther    Sport = "other"
)

// sportAliases maps lower-cased raw tags (FIT enum names, platform tags) onto Sport.
var sportAliases = map[string]Sport{
	"cycling":           SportCycling,
	"ride":              SportCycling,
	"bike":              SportCycling,
	"biking":            SportCycling,
	"road_biking":       SportCycling,
	"mountain_biking":   SportCycling,
	"gravel_cycling":    SportCycling,
	"indoor_cycling":    SportCycling,
	"virtual_ride":      SportCycling,
	"virtualride":       SportCycling,
	"ebike_ride":        SportCycling,
	"ebikeride":         SportCycling,
	"e_biking":          SportCycling,
	"ebiking":           SportCycling,
	"running":           SportRunning,
	"run":               SportRunning,
	"trail_run":         SportRunning,
	"trailrun":          SportRunning,
	"trail_running":     SportRunning,
	"treadmill_running": SportRunning,
	"virtual_run":       SportRunning,
	"virtualrun":        SportRunning,
	"swimming":          SportSwimming,
	"swim":              SportSwimming,
	"lap_swimming":      SportSwimming,
	"open_water":        SportSwimming,
	"open_water_swim":   SportSwimming,
}

// NormalizeSport maps any raw sport tag onto the closed vocabulary. Unknown tags map to SportOther.
func NormalizeSport(raw string) Sport {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if s, ok := sportAliases[key]; ok {
		return s
	}
	return SportOther
}

// Tag returns the short platform vocabulary (ride|run|swim|other).
func (s Sport) Tag() string {
	switch s {
	case SportCycling:
		return "ride"
	case SportRunning:
		return "run"
	case SportSwimming:
		return "swim"
	default:
		return "other"
	}
}

// Source identifies where a workout came from.
type Source string

const (
	SourceFile          Source = "file"
	SourceTrainingPeaks Source = "trainingpeaks"
	SourceStrava        Source = "strava"
	SourceGarmin        Source = "garmin"
	SourceWahoo         Source = "wahoo"
	SourceOther         Source = "other"
)

var knownSources = []Source{SourceFile, SourceTrainingPeaks, SourceStrava, SourceGarmin, SourceWahoo, SourceOther}

// NormalizeSource lower-cases raw and checks it against the known sources.
func NormalizeSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range knownSources {
		if s == known {
			return s, nil
		}
	}
	return "", &ValidationError{Entity: "workout", Field: "source", Value: raw, Reason: "must be one of file, trainingpeaks, strava, garmin, wahoo, other"}
}

// Sample is one telemetry reading at an offset from workout start.
type Sample struct {
	WorkoutID    uuid.UUID `json:"workout_id"`
	TS           int       `json:"t_s"`
	PowerW       *int      `json:"power_w,omitempty"`
	HRBPM        *int      `json:"hr_bpm,omitempty"`
	PaceMPS      *float64  `json:"pace_mps,omitempty"`
	Cadence      *int      `json:"cadence,omitempty"`
	AltitudeM    *float64  `json:"altitude_m,omitempty"`
	Lat          *float64  `json:"lat,omitempty"`
	Lon          *float64  `json:"lon,omitempty"`
	TemperatureC *float64  `json:"temperature_c,omitempty"`
	DistanceM    *float64  `json:"distance_m,omitempty"`
}

// Summary holds the derived scalar metrics of one workout.
// Extra carries metrics outside the fixed key set.
type Summary struct {
	AvgPower   *float64           `json:"avg_power,omitempty"`
	NP         *float64           `json:"np,omitempty"`
	IF         *float64           `json:"if,omitempty"`
	VI         *float64           `json:"vi,omitempty"`
	AvgHR      *float64           `json:"avg_hr,omitempty"`
	TSS        *float64           `json:"tss,omitempty"`
	DistanceM  *float64           `json:"distance_m,omitempty"`
	ElevationM *float64           `json:"elevation_m,omitempty"`
	Extra      map[string]float64 `json:"extra,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
}

// SetExtra records an auxiliary metric, allocating the side map on first use.
func (s *Summary) SetExtra(key string, v float64) {
	if s.Extra == nil {
		s.Extra = make(map[string]float64)
	}
	s.Extra[key] = v
}

// WorkoutExecuted is one completed activity.
type WorkoutExecuted struct {
	ID        uuid.UUID `json:"id"`
	AthleteID int64     `json:"athlete_id"`
	Source    Source    `json:"source"`
	StartTime time.Time `json:"start_time"`
	DurationS int       `json:"duration_s"`
	Sport     Sport     `json:"sport"`
	FileRef   string    `json:"file_ref,omitempty"`
	Summary   Summary   `json:"summary_json"`
}

var workoutNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/lucasjlepore/trainingload/workout"))

// WorkoutKey is the stable id of an athlete's workout: the same start instant and sport always
// give the same id, so decoding a file again identifies the same workout.
func WorkoutKey(athleteID int64, start time.Time, sport Sport) uuid.UUID {
	name := strconv.FormatInt(athleteID, 10) + "|" + strconv.FormatInt(start.Unix(), 10) + "|" + string(sport)
	return uuid.NewSHA1(workoutNamespace, []byte(name))
}

// Date returns the local calendar date the workout started on.
func (w WorkoutExecuted) Date() civil.Date {
	return civil.DateOf(w.StartTime)
}

// AthleteThreshold is one date-versioned set of reference values.
type AthleteThreshold struct {
	ID            int64      `json:"id,omitempty" yaml:"id,omitempty"`
	AthleteID     int64      `json:"athlete_id" yaml:"athlete_id"`
	EffectiveDate civil.Date `json:"effective_date" yaml:"effective_date"`
	Sport         Sport      `json:"sport" yaml:"sport"`

	FTP       *int   `json:"ftp,omitempty" yaml:"ftp,omitempty"`
	FTPSource string `json:"ftp_source,omitempty" yaml:"ftp_source,omitempty"`

	ThresholdPaceMinPerKM *float64 `json:"threshold_pace_min_per_km,omitempty" yaml:"threshold_pace_min_per_km,omitempty"`
	CriticalSpeedMPS      *float64 `json:"critical_speed_m_per_s,omitempty" yaml:"critical_speed_m_per_s,omitempty"`
	RunThresholdSource    string   `json:"run_threshold_source,omitempty" yaml:"run_threshold_source,omitempty"`

	ThresholdPace100mS  *float64 `json:"threshold_pace_100m_s,omitempty" yaml:"threshold_pace_100m_s,omitempty"`
	SwimThresholdSource string   `json:"swim_threshold_source,omitempty" yaml:"swim_threshold_source,omitempty"`

	LTHR      *int   `json:"lthr,omitempty" yaml:"lthr,omitempty"`
	MaxHR     *int   `json:"max_hr,omitempty" yaml:"max_hr,omitempty"`
	RestingHR *int   `json:"resting_hr,omitempty" yaml:"resting_hr,omitempty"`
	HRSource  string `json:"hr_source,omitempty" yaml:"hr_source,omitempty"`

	Notes          string `json:"notes,omitempty" yaml:"notes,omitempty"`
	IsUserOverride bool   `json:"is_user_override" yaml:"is_user_override"`
}

// MetricsDaily is one calendar day of load metrics plus optional recovery markers.
type MetricsDaily struct {
	AthleteID        int64      `json:"athlete_id,omitempty"`
	MetricDate       civil.Date `json:"metric_date"`
	TSS              float64    `json:"tss"`
	ATL              float64    `json:"atl"`
	CTL              float64    `json:"ctl"`
	TSB              float64    `json:"tsb"`
	RHR              *int       `json:"rhr,omitempty"`
	HRV              *float64   `json:"hrv,omitempty"`
	SleepScore       *float64   `json:"sleep_score,omitempty"`
	SleepDurationMin *int       `json:"sleep_duration_min,omitempty"`
	RPE              *int       `json:"rpe,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// Activity is the per-workout input of the daily load model.
type Activity struct {
	Date            civil.Date `json:"activity_date"`
	Sport           string     `json:"sport"`
	DurationMin     float64    `json:"duration_min"`
	DistanceKM      *float64   `json:"distance_km,omitempty"`
	TSS             *float64   `json:"tss,omitempty"`
	HRAvg           *float64   `json:"hr_avg,omitempty"`
	PowerAvg        *float64   `json:"power_avg,omitempty"`
	PaceMinPerKM    *float64   `json:"pace_min_per_km,omitempty"`
	ElevationM      *float64   `json:"elevation_m,omitempty"`
	IntensityFactor *float64   `json:"intensity_factor,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
