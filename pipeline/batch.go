package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	trainingload "github.com/lucasjlepore/trainingload"
	"github.com/lucasjlepore/trainingload/extract"
	"github.com/lucasjlepore/trainingload/logging"
)

// BatchOptions configures AnalyzeAll.
type BatchOptions struct {
	Analysis trainingload.Config
	// Workers bounds concurrent decodes. Zero means GOMAXPROCS.
	Workers int
	// Timeout bounds each file's decode.
	Timeout time.Duration
	// SkipFailures logs and drops files that fail to parse instead of aborting. Missing
	// files and threshold failures still abort.
	SkipFailures bool
	Logger       *logging.Logger
}

// AnalyzeAll analyzes independent workout files concurrently. Results keep the order of
// paths; skipped files leave a nil entry.
func AnalyzeAll(ctx context.Context, paths []string, opts BatchOptions) ([]*trainingload.Analysis, error) {
	log := logging.OrNop(opts.Logger)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]*trainingload.Analysis, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res, err := Extract(gctx, path, opts.Analysis.AthleteID, opts.Timeout)
			if err == nil {
				out[i], err = trainingload.Analyze(res, opts.Analysis)
			}
			if err != nil {
				if opts.SkipFailures && gctx.Err() == nil && extract.IsParseError(err) {
					log.Warn("skipping workout file", "path", path, "error", err)
					return nil
				}
				return fmt.Errorf("analyze %s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
