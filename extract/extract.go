// Package extract decodes FIT activity files, raw or gzip-compressed, into a workout
// and its ordered per-timestamp samples.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/tormoder/fit"

	"github.com/lucasjlepore/trainingload/metrics"
	"github.com/lucasjlepore/trainingload/training"
)

// ParseError reports input that exists but cannot be turned into samples.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options controls workout construction.
type Options struct {
	AthleteID int64
	// FTPWatts enables IF and TSS in the summary.
	FTPWatts *float64
	// WorkoutID is assigned to the workout and its samples. A nil UUID derives one from the
	// athlete, start time and sport.
	WorkoutID uuid.UUID
}

// Result is one decoded workout.
type Result struct {
	Workout training.WorkoutExecuted
	Samples []training.Sample
	Session SessionSummary
}

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// ParseFile reads a .fit or .fit.gz file. A missing path returns an error wrapping
// fs.ErrNotExist; every other failure to produce samples is a *ParseError.
func ParseFile(path string, opts Options) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat FIT file: %w", err)
	}
	if t := FileType(path); t != TypeFIT {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("unsupported file type %q", t)}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()

	if !IsGzip(path) {
		return parse(f, path, opts)
	}

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		bufPool.Put(buf)
	}()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "not a valid gzip file", Err: err}
	}
	defer zr.Close()
	if _, err := io.Copy(buf, zr); err != nil {
		return nil, &ParseError{Path: path, Reason: "corrupted gzip data", Err: err}
	}
	return parse(bytes.NewReader(buf.Bytes()), path, opts)
}

// Parse decodes an uncompressed FIT stream. name is used for error context and file_ref.
func Parse(r io.Reader, name string, opts Options) (*Result, error) {
	return parse(r, name, opts)
}

func parse(r io.Reader, path string, opts Options) (*Result, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "decode FIT file", Err: err}
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "activity FIT expected", Err: err}
	}

	samples, t0, err := buildSamples(activity.Records)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "invalid sample", Err: err}
	}
	if len(samples) == 0 {
		return nil, &ParseError{Path: path, Reason: "no workout data found"}
	}

	var session SessionSummary
	if len(activity.Sessions) > 0 && activity.Sessions[0] != nil {
		session = sessionSummary(activity.Sessions[0])
	}

	start := session.StartTime
	if start.IsZero() {
		start = t0
	}
	if zone, ok := localZone(activity.Activity); ok {
		start = start.In(zone)
	}
	sport := training.NormalizeSport(session.Sport)

	id := opts.WorkoutID
	if id == uuid.Nil {
		id = training.WorkoutKey(opts.AthleteID, start, sport)
	}
	for i := range samples {
		samples[i].WorkoutID = id
	}

	workout := training.WorkoutExecuted{
		ID:        id,
		AthleteID: opts.AthleteID,
		Source:    training.SourceFile,
		StartTime: start,
		DurationS: samples[len(samples)-1].TS,
		Sport:     sport,
		FileRef:   path,
		Summary:   Summarize(samples, session, opts.FTPWatts),
	}
	if err := workout.Validate(); err != nil {
		return nil, fmt.Errorf("build workout: %w", err)
	}

	return &Result{Workout: workout, Samples: samples, Session: session}, nil
}

// Summarize computes the workout summary from samples. Device-reported NP and TSS fill
// in only where the computed value is missing; distance and elevation come from the session.
func Summarize(samples []training.Sample, session SessionSummary, ftp *float64) training.Summary {
	// Guard failures are already listed in summary.Errors.
	summary, _ := metrics.Summarize(samples, ftp)

	if summary.NP == nil && session.NormalizedPower != nil {
		summary.NP = training.Float(*session.NormalizedPower)
	}
	if summary.TSS == nil && session.TSS != nil {
		summary.TSS = training.Float(*session.TSS)
	}

	switch {
	case session.TotalDistanceM != nil:
		summary.DistanceM = training.Float(*session.TotalDistanceM)
	default:
		if d, ok := lastDistance(samples); ok {
			summary.DistanceM = training.Float(d)
		}
	}
	if session.TotalAscentM != nil {
		summary.ElevationM = training.Float(*session.TotalAscentM)
	}
	return summary
}

func lastDistance(samples []training.Sample) (float64, bool) {
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].DistanceM != nil {
			return *samples[i].DistanceM, true
		}
	}
	return 0, false
}

// IsGzip reports whether path carries a .gz suffix.
func IsGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
