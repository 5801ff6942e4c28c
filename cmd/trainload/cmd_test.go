package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"

	"github.com/lucasjlepore/trainingload/internal/fittest"
)

func init() {
	color.NoColor = true
}

const thresholdsYAML = `
- athlete_id: 1
  sport: cycling
  effective_date: 2024-01-01
  ftp: 250
  ftp_source: ramp_test
- athlete_id: 1
  sport: cycling
  effective_date: 2024-06-01
  ftp: 270
  is_user_override: true
`

type env struct {
	dir        string
	config     string
	thresholds string
}

func newEnv(t *testing.T, withStorage bool) env {
	t.Helper()
	dir := t.TempDir()
	cfg := "log:\n  level: error\n"
	if withStorage {
		cfg += "storage:\n  path: " + filepath.Join(dir, "db", "load.db") + "\n"
	}
	e := env{
		dir:        dir,
		config:     filepath.Join(dir, "config.yaml"),
		thresholds: filepath.Join(dir, "thresholds.yaml"),
	}
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o600))
	require.NoError(t, os.WriteFile(e.thresholds, []byte(thresholdsYAML), 0o600))
	return e
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--config=" + e.config}, args...))
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func (e env) ride(t *testing.T, name string, start time.Time, watts uint16) string {
	t.Helper()
	return fittest.WriteFile(t, e.dir, name, fittest.Ride{
		Start:   start,
		Seconds: 3601,
		Watts:   watts,
		HR:      150,
		Sport:   fit.SportCycling,
	})
}

func TestThresholdCommands(t *testing.T) {
	e := newEnv(t, true)

	out, err := e.run(t, "threshold", "import", e.thresholds)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 threshold records")

	out, err = e.run(t, "threshold", "resolve", "--sport", "ride", "--date", "2024-07-15")
	require.NoError(t, err)
	assert.Contains(t, out, "cycling FTP 270 W (effective 2024-06-01)  [override]")

	out, err = e.run(t, "threshold", "resolve", "--date", "2024-03-01")
	require.NoError(t, err)
	assert.Contains(t, out, "FTP 250 W (effective 2024-01-01)")

	_, err = e.run(t, "threshold", "resolve", "--date", "2023-12-31")
	assert.ErrorContains(t, err, "no cycling threshold found for workout on 2023-12-31")

	out, err = e.run(t, "threshold", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-01  250 W")
	assert.Contains(t, out, "ramp_test")

	out, err = e.run(t, "threshold", "progression", "--from", "2024-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "FTP progression, from 2024-01-01 (2 tests)")
	assert.Contains(t, out, "+20 W (+8.0%)  after 152 days")

	_, err = e.run(t, "threshold", "import", e.thresholds)
	assert.ErrorContains(t, err, "duplicate effective date")

	_, err = e.run(t, "threshold", "resolve", "--date", "15/07/2024")
	assert.ErrorContains(t, err, "--date: expected YYYY-MM-DD")
}

func TestThresholdImportNeedsDatabase(t *testing.T) {
	e := newEnv(t, false)
	_, err := e.run(t, "threshold", "import", e.thresholds)
	assert.ErrorContains(t, err, "no database configured")

	out, err := e.run(t, "--thresholds="+e.thresholds, "threshold", "history", "--sport", "running")
	require.NoError(t, err)
	assert.Contains(t, out, "No running thresholds for athlete 1.")
}

func TestAnalyzeAndLoad(t *testing.T) {
	e := newEnv(t, true)
	_, err := e.run(t, "threshold", "import", e.thresholds)
	require.NoError(t, err)

	first := e.ride(t, "first.fit", time.Date(2024, 7, 15, 6, 0, 0, 0, time.UTC), 270)
	out, err := e.run(t, "analyze", first, "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "TSS 100")
	assert.Contains(t, out, "FTP 270 W (threshold)")

	// Saving the same file again replaces the stored workout.
	_, err = e.run(t, "analyze", first, "--save")
	require.NoError(t, err)

	out, err = e.run(t, "load")
	require.NoError(t, err)
	assert.Contains(t, out, "Range: 2024-07-15 to 2024-07-15 (1 days)")
	assert.Contains(t, out, "Total TSS: 100")

	// The stored copy of first.fit is not counted twice.
	second := e.ride(t, "second.fit.gz", time.Date(2024, 7, 17, 6, 0, 0, 0, time.UTC), 270)
	recovery := filepath.Join(e.dir, "recovery.yaml")
	require.NoError(t, os.WriteFile(recovery, []byte("- date: 2024-07-16\n  rhr: 47\n"), 0o600))
	outDir := filepath.Join(e.dir, "load")
	out, err = e.run(t, "load", first, second, "--save", "--recovery", recovery, "--out", outDir, "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Range: 2024-07-15 to 2024-07-17 (3 days)")
	assert.Contains(t, out, "Total TSS: 200")
	assert.FileExists(t, filepath.Join(outDir, "metrics_daily.csv"))
	assert.FileExists(t, filepath.Join(outDir, "load_notes.md"))

	out, err = e.run(t, "load", "--from", "2024-07-16")
	require.NoError(t, err)
	assert.Contains(t, out, "Range: 2024-07-17 to 2024-07-17 (1 days)")

	_, err = e.run(t, "load", "--to", "July")
	assert.ErrorContains(t, err, "--to: expected YYYY-MM-DD")
}

func TestAnalyzeWritesArtifacts(t *testing.T) {
	e := newEnv(t, false)
	a := e.ride(t, "a.fit", time.Date(2024, 7, 15, 6, 0, 0, 0, time.UTC), 200)
	b := e.ride(t, "b.fit.gz", time.Date(2024, 7, 16, 6, 0, 0, 0, time.UTC), 220)
	outDir := filepath.Join(e.dir, "out")

	out, err := e.run(t, "--thresholds="+e.thresholds, "analyze", a, b, "--out", outDir, "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(outDir, "a"))
	for _, name := range []string{"samples.csv", "workout.json", "notes.md", "manifest.json", "source.fit"} {
		assert.FileExists(t, filepath.Join(outDir, "a", name))
	}
	assert.FileExists(t, filepath.Join(outDir, "b", "source.fit.gz"))

	out, err = e.run(t, "analyze", a, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"ftp_source": "unavailable"`)

	out, err = e.run(t, "analyze", a)
	require.NoError(t, err)
	assert.Contains(t, out, "warning: no cycling threshold found for workout on 2024-07-15")

	_, err = e.run(t, "analyze", a, "--require-threshold")
	assert.Error(t, err)

	// Only unreadable files are skipped; a missing threshold still fails on both paths.
	_, err = e.run(t, "analyze", a, "--require-threshold", "--skip-failures")
	assert.ErrorContains(t, err, "no cycling threshold found")
	_, err = e.run(t, "analyze", a, "--require-threshold", "--skip-failures", "--out", filepath.Join(e.dir, "strict"))
	assert.ErrorContains(t, err, "no cycling threshold found")

	corrupt := filepath.Join(e.dir, "corrupt.fit")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a fit file"), 0o600))
	out, err = e.run(t, "analyze", a, corrupt, "--skip-failures")
	require.NoError(t, err)
	assert.Contains(t, out, "TSS")
	_, err = e.run(t, "analyze", a, corrupt, "--skip-failures", "--out", filepath.Join(e.dir, "lenient"))
	require.NoError(t, err)

	_, err = e.run(t, "analyze", a, "--save")
	assert.ErrorContains(t, err, "no database configured")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "ride", fileStem("/tmp/ride.FIT.gz"))
	assert.Equal(t, "morning.ride", fileStem("morning.ride.fit"))
	assert.Equal(t, "all dates", dateRange(civil.Date{}, civil.Date{}))
	assert.Equal(t, "through 2024-07-01", dateRange(civil.Date{}, civil.Date{Year: 2024, Month: 7, Day: 1}))
	assert.Equal(t, "   -3.5", tsbString(-3.5))
	assert.Equal(t, "-", intString(nil))
}
