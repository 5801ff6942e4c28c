package store

import (
	_ "embed"
)

const (
	insertThresholdSQL = `
INSERT INTO athlete_thresholds (athlete_id,
                                sport,
                                effective_date,
                                ftp,
                                ftp_source,
                                threshold_pace_min_per_km,
                                critical_speed_m_per_s,
                                run_threshold_source,
                                threshold_pace_100m_s,
                                swim_threshold_source,
                                lthr,
                                max_hr,
                                resting_hr,
                                hr_source,
                                notes,
                                is_user_override)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectThresholdsSQL = `
SELECT
    id,
    athlete_id,
    sport,
    effective_date,
    ftp,
    ftp_source,
    threshold_pace_min_per_km,
    critical_speed_m_per_s,
    run_threshold_source,
    threshold_pace_100m_s,
    swim_threshold_source,
    lthr,
    max_hr,
    resting_hr,
    hr_source,
    notes,
    is_user_override
FROM athlete_thresholds
WHERE
    athlete_id = ?
    AND (? = '' OR sport = ?)
ORDER BY effective_date, sport`

	upsertWorkoutSQL = `
INSERT INTO workouts_executed (id,
                               athlete_id,
                               source,
                               start_time,
                               start_date,
                               duration_s,
                               sport,
                               file_ref,
                               summary_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    athlete_id   = excluded.athlete_id,
    source       = excluded.source,
    start_time   = excluded.start_time,
    start_date   = excluded.start_date,
    duration_s   = excluded.duration_s,
    sport        = excluded.sport,
    file_ref     = excluded.file_ref,
    summary_json = excluded.summary_json`

	selectWorkoutsSQL = `
SELECT
    id,
    athlete_id,
    source,
    start_time,
    duration_s,
    sport,
    file_ref,
    summary_json
FROM workouts_executed
WHERE
    athlete_id = ?
    AND (? = '' OR start_date >= ?)
    AND (? = '' OR start_date <= ?)
ORDER BY start_time`

	upsertMetricsDailySQL = `
INSERT INTO metrics_daily (athlete_id,
                           metric_date,
                           tss,
                           atl,
                           ctl,
                           tsb,
                           rhr,
                           hrv,
                           sleep_score,
                           sleep_duration_min,
                           rpe,
                           notes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (athlete_id, metric_date) DO UPDATE SET
    tss                = excluded.tss,
    atl                = excluded.atl,
    ctl                = excluded.ctl,
    tsb                = excluded.tsb,
    rhr                = excluded.rhr,
    hrv                = excluded.hrv,
    sleep_score        = excluded.sleep_score,
    sleep_duration_min = excluded.sleep_duration_min,
    rpe                = excluded.rpe,
    notes              = excluded.notes`

	selectMetricsDailySQL = `
SELECT
    athlete_id,
    metric_date,
    tss,
    atl,
    ctl,
    tsb,
    rhr,
    hrv,
    sleep_score,
    sleep_duration_min,
    rpe,
    notes
FROM metrics_daily
WHERE
    athlete_id = ?
    AND (? = '' OR metric_date >= ?)
    AND (? = '' OR metric_date <= ?)
ORDER BY metric_date`
)

//go:embed schema.sql
var schemaSQL string
