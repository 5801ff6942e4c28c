// Package store persists thresholds, executed workouts and daily load metrics in SQLite.
// It uses modernc.org/sqlite (pure Go, no CGO required).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/lucasjlepore/trainingload/logging"
	"github.com/lucasjlepore/trainingload/thresholds"
	"github.com/lucasjlepore/trainingload/training"
)

// Store wraps the SQLite database connection.
type Store struct {
	db   *sql.DB
	path string
	log  *logging.Logger
}

// Open opens or creates the database at path and initializes the schema.
func Open(ctx context.Context, path string, log *logging.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps the pragmas applied to every statement.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, log: logging.OrNop(log).With("db", path)}
	if err := s.configurePragmas(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	s.log.Debug("database opened")
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// SaveThreshold validates and inserts t, returning its row id. The sport is stored in its
// canonical form, so a second record for the same (athlete, sport, effective_date) fails with
// thresholds.ErrDuplicateEffectiveDate even when it names the sport by an alias.
func (s *Store) SaveThreshold(ctx context.Context, t training.AthleteThreshold) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	sport := thresholds.SportKey(string(t.Sport))
	res, err := s.db.ExecContext(ctx, insertThresholdSQL,
		t.AthleteID,
		sport,
		t.EffectiveDate.String(),
		nullInt(t.FTP),
		nullString(t.FTPSource),
		nullFloat(t.ThresholdPaceMinPerKM),
		nullFloat(t.CriticalSpeedMPS),
		nullString(t.RunThresholdSource),
		nullFloat(t.ThresholdPace100mS),
		nullString(t.SwimThresholdSource),
		nullInt(t.LTHR),
		nullInt(t.MaxHR),
		nullInt(t.RestingHR),
		nullString(t.HRSource),
		nullString(t.Notes),
		t.IsUserOverride,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("save threshold: %w (athlete %d, %s, %s)",
				thresholds.ErrDuplicateEffectiveDate, t.AthleteID, sport, t.EffectiveDate)
		}
		return 0, fmt.Errorf("save threshold: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save threshold: %w", err)
	}
	s.log.Debug("threshold saved", "athlete_id", t.AthleteID, "sport", sport, "effective_date", t.EffectiveDate.String())
	return id, nil
}

// Thresholds returns an athlete's records ordered by effective date. An empty sport returns
// every sport.
func (s *Store) Thresholds(ctx context.Context, athleteID int64, sport string) (out []training.AthleteThreshold, err error) {
	sport = thresholds.SportKey(sport)
	rows, err := s.db.QueryContext(ctx, selectThresholdsSQL, athleteID, sport, sport)
	if err != nil {
		return nil, fmt.Errorf("query thresholds: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			t                                        training.AthleteThreshold
			sportCol, effective                      string
			ftp, lthr, maxHR, restingHR              sql.NullInt64
			pace, cs, swimPace                       sql.NullFloat64
			ftpSrc, runSrc, swimSrc, hrSrc, notesCol sql.NullString
		)
		if err := rows.Scan(
			&t.ID, &t.AthleteID, &sportCol, &effective,
			&ftp, &ftpSrc, &pace, &cs, &runSrc, &swimPace, &swimSrc,
			&lthr, &maxHR, &restingHR, &hrSrc, &notesCol, &t.IsUserOverride,
		); err != nil {
			return nil, fmt.Errorf("scan threshold: %w", err)
		}
		if t.EffectiveDate, err = civil.ParseDate(effective); err != nil {
			return nil, fmt.Errorf("parse effective_date %q: %w", effective, err)
		}
		t.Sport = training.Sport(sportCol)
		t.FTP, t.FTPSource = intPtr(ftp), ftpSrc.String
		t.ThresholdPaceMinPerKM, t.CriticalSpeedMPS, t.RunThresholdSource = floatPtr(pace), floatPtr(cs), runSrc.String
		t.ThresholdPace100mS, t.SwimThresholdSource = floatPtr(swimPace), swimSrc.String
		t.LTHR, t.MaxHR, t.RestingHR, t.HRSource = intPtr(lthr), intPtr(maxHR), intPtr(restingHR), hrSrc.String
		t.Notes = notesCol.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thresholds: %w", err)
	}
	return out, nil
}

// SaveWorkout validates w and inserts or replaces it by id. A nil id is derived from the
// athlete, start time and sport, so saving the same workout again replaces the stored row.
func (s *Store) SaveWorkout(ctx context.Context, w *training.WorkoutExecuted) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ID == uuid.Nil {
		w.ID = training.WorkoutKey(w.AthleteID, w.StartTime, w.Sport)
	}
	summary, err := json.Marshal(w.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, upsertWorkoutSQL,
		w.ID.String(),
		w.AthleteID,
		string(w.Source),
		w.StartTime.Format(time.RFC3339Nano),
		w.Date().String(),
		w.DurationS,
		string(w.Sport),
		nullString(w.FileRef),
		string(summary),
	)
	if err != nil {
		return fmt.Errorf("save workout: %w", err)
	}
	s.log.Debug("workout saved", "workout_id", w.ID, "athlete_id", w.AthleteID, "sport", w.Sport)
	return nil
}

// Workouts returns an athlete's workouts whose local start date falls within [from, to],
// ordered by start time. Zero bounds are open.
func (s *Store) Workouts(ctx context.Context, athleteID int64, from, to civil.Date) (out []training.WorkoutExecuted, err error) {
	lo, hi := dateArg(from), dateArg(to)
	rows, err := s.db.QueryContext(ctx, selectWorkoutsSQL, athleteID, lo, lo, hi, hi)
	if err != nil {
		return nil, fmt.Errorf("query workouts: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			w                     training.WorkoutExecuted
			id, source, start, sp string
			fileRef               sql.NullString
			summary               string
		)
		if err := rows.Scan(&id, &w.AthleteID, &source, &start, &w.DurationS, &sp, &fileRef, &summary); err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		if w.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse workout id %q: %w", id, err)
		}
		if w.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, fmt.Errorf("parse start_time %q: %w", start, err)
		}
		if err := json.Unmarshal([]byte(summary), &w.Summary); err != nil {
			return nil, fmt.Errorf("decode summary of %s: %w", id, err)
		}
		w.Source = training.Source(source)
		w.Sport = training.Sport(sp)
		w.FileRef = fileRef.String
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workouts: %w", err)
	}
	return out, nil
}

// SaveMetricsDaily validates and upserts each day keyed by (athlete, metric_date) in one
// transaction.
func (s *Store) SaveMetricsDaily(ctx context.Context, series []training.MetricsDaily) (err error) {
	for _, m := range series {
		if err := m.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, upsertMetricsDailySQL)
	if err != nil {
		return fmt.Errorf("prepare metrics_daily upsert: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, m := range series {
		if _, err = stmt.ExecContext(ctx,
			m.AthleteID,
			m.MetricDate.String(),
			m.TSS, m.ATL, m.CTL, m.TSB,
			nullInt(m.RHR),
			nullFloat(m.HRV),
			nullFloat(m.SleepScore),
			nullInt(m.SleepDurationMin),
			nullInt(m.RPE),
			nullString(m.Notes),
		); err != nil {
			return fmt.Errorf("upsert metrics_daily %s: %w", m.MetricDate, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit metrics_daily: %w", err)
	}
	s.log.Debug("daily metrics saved", "days", len(series))
	return nil
}

// MetricsDaily returns an athlete's stored days within [from, to]. Zero bounds are open.
func (s *Store) MetricsDaily(ctx context.Context, athleteID int64, from, to civil.Date) (out []training.MetricsDaily, err error) {
	lo, hi := dateArg(from), dateArg(to)
	rows, err := s.db.QueryContext(ctx, selectMetricsDailySQL, athleteID, lo, lo, hi, hi)
	if err != nil {
		return nil, fmt.Errorf("query metrics_daily: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			m               training.MetricsDaily
			date            string
			rhr, sleep, rpe sql.NullInt64
			hrv, score      sql.NullFloat64
			notes           sql.NullString
		)
		if err := rows.Scan(&m.AthleteID, &date, &m.TSS, &m.ATL, &m.CTL, &m.TSB,
			&rhr, &hrv, &score, &sleep, &rpe, &notes); err != nil {
			return nil, fmt.Errorf("scan metrics_daily: %w", err)
		}
		if m.MetricDate, err = civil.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse metric_date %q: %w", date, err)
		}
		m.RHR, m.HRV, m.SleepScore = intPtr(rhr), floatPtr(hrv), floatPtr(score)
		m.SleepDurationMin, m.RPE = intPtr(sleep), intPtr(rpe)
		m.Notes = notes.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics_daily: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
