package pipeline

import (
	"bufio"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/tormoder/fit"

	"github.com/lucasjlepore/trainingload/training"
)

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func writeText(path, text string) error {
	return os.WriteFile(path, []byte(text+"\n"), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// projectFileID reads the device identity of an uncompressed FIT file. It returns nil
// when the header cannot be decoded.
func projectFileID(path string) *FileIDInfo {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	_, id, err := fit.DecodeHeaderAndFileID(f)
	if err != nil {
		return nil
	}
	info := &FileIDInfo{
		Type:         fmt.Sprint(id.Type),
		Manufacturer: fmt.Sprint(id.Manufacturer),
		Product:      fmt.Sprint(id.GetProduct()),
		SerialNumber: id.SerialNumber,
	}
	if !id.TimeCreated.IsZero() && !fit.IsBaseTime(id.TimeCreated) {
		info.TimeCreated = id.TimeCreated.UTC().Format(time.RFC3339)
	}
	return info
}

var sampleHeader = []string{
	"t_s", "power_w", "hr_bpm", "pace_mps", "cadence", "altitude_m", "lat", "lon", "temperature_c", "distance_m",
}

func writeSamplesCSV(path string, samples []training.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(sampleHeader); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.Itoa(s.TS),
			formatIntPtr(s.PowerW),
			formatIntPtr(s.HRBPM),
			formatFloatPtr(s.PaceMPS),
			formatIntPtr(s.Cadence),
			formatFloatPtr(s.AltitudeM),
			formatFloatPtr(s.Lat),
			formatFloatPtr(s.Lon),
			formatFloatPtr(s.TemperatureC),
			formatFloatPtr(s.DistanceM),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

var dailyHeader = []string{
	"metric_date", "tss", "atl", "ctl", "tsb", "rhr", "hrv", "sleep_score", "sleep_duration_min", "rpe",
}

func writeDailyCSV(path string, series []training.MetricsDaily) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(dailyHeader); err != nil {
		return err
	}
	for _, m := range series {
		row := []string{
			m.MetricDate.String(),
			formatFloat(m.TSS),
			formatFloat(m.ATL),
			formatFloat(m.CTL),
			formatFloat(m.TSB),
			formatIntPtr(m.RHR),
			formatFloatPtr(m.HRV),
			formatFloatPtr(m.SleepScore),
			formatIntPtr(m.SleepDurationMin),
			formatIntPtr(m.RPE),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
