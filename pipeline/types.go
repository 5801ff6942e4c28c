package pipeline

import (
	"time"

	trainingload "github.com/lucasjlepore/trainingload"
	"github.com/lucasjlepore/trainingload/load"
	"github.com/lucasjlepore/trainingload/logging"
	"github.com/lucasjlepore/trainingload/training"
)

// Options configures the per-workout analysis pipeline.
type Options struct {
	FitPath    string
	OutDir     string
	Format     string // parquet|csv
	Overwrite  bool
	CopySource bool

	// Timeout bounds the decompression and decode step. Zero relies on ctx alone.
	Timeout time.Duration

	Analysis trainingload.Config
	Logger   *logging.Logger
}

// Result returns generated output paths.
type Result struct {
	OutputDir      string `json:"output_dir"`
	SamplesPath    string `json:"samples_path"`
	WorkoutPath    string `json:"workout_path"`
	NotesPath      string `json:"notes_path"`
	SourceCopyPath string `json:"source_copy_path,omitempty"`

	Analysis *trainingload.Analysis `json:"-"`
}

// LoadOptions configures the daily load pipeline.
type LoadOptions struct {
	OutDir    string
	Format    string // jsonl|csv|parquet
	Overwrite bool

	AthleteID int64
	Constants load.Constants
	Recovery  []load.Recovery

	Logger *logging.Logger
}

// LoadResult returns the daily series and where it was written.
type LoadResult struct {
	OutputDir  string `json:"output_dir"`
	SeriesPath string `json:"series_path"`
	NotesPath  string `json:"notes_path"`

	Series []training.MetricsDaily `json:"-"`
}

// Manifest describes one analysis output directory.
type Manifest struct {
	FormatVersion   string      `json:"format_version"`
	GeneratedAt     time.Time   `json:"generated_at"`
	SourceFile      string      `json:"source_file"`
	SourceSHA256    string      `json:"source_sha256"`
	SourceSizeBytes int64       `json:"source_size_bytes"`
	WorkoutID       string      `json:"workout_id"`
	SampleRows      int         `json:"sample_rows"`
	FileID          *FileIDInfo `json:"file_id,omitempty"`
	Artifacts       []string    `json:"artifacts"`
}

// FileIDInfo is the device identity projected from the FIT file_id message.
type FileIDInfo struct {
	Type         string `json:"type"`
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`
	SerialNumber uint32 `json:"serial_number"`
	TimeCreated  string `json:"time_created,omitempty"`
}
