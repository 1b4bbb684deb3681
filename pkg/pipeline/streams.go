package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yumyai/afscan/pkg/aggregate"
	"github.com/yumyai/afscan/pkg/alignment"
	"github.com/yumyai/afscan/pkg/catalog"
)

// Stream is one source of aligner rows, e.g. the alignments of R1.
type Stream struct {
	Label string
	Name  string
	Open  func() (io.ReadCloser, error)
}

// FileStream reads alignments from path.
func FileStream(label, path string) Stream {
	return Stream{
		Label: label,
		Name:  path,
		Open: func() (io.ReadCloser, error) {
			fh, err := os.Open(path)
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", alignment.ErrMissingStream, path)
			}
			return fh, err
		},
	}
}

// TextStream reads alignments held in memory.
func TextStream(label, text string) Stream {
	return Stream{
		Label: label,
		Name:  label,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(text)), nil
		},
	}
}

// StreamReport describes how one stream was scanned.
type StreamReport struct {
	Label   string          `json:"label"`
	Name    string          `json:"name"`
	Missing bool            `json:"missing"`
	Stats   alignment.Stats `json:"stats"`
}

// ScanStreams scans every stream and aggregates the findings. Up to threads
// streams are read at once; findings are merged in stream order afterwards,
// so the result matches a sequential pass. A missing stream is logged and
// contributes nothing.
func ScanStreams(ctx context.Context, idx *catalog.Index, streams []Stream, threads int, opts alignment.Options, log *zap.Logger) (aggregate.Result, []StreamReport, int, error) {
	if threads < 1 {
		threads = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	found := make([][]alignment.Finding, len(streams))
	reports := make([]StreamReport, len(streams))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)

	for i, s := range streams {
		reports[i] = StreamReport{Label: s.Label, Name: s.Name}

		g.Go(func() error {
			rc, err := s.Open()
			if errors.Is(err, alignment.ErrMissingStream) {
				log.Warn("Alignment stream missing, skipping", zap.String("label", s.Label), zap.String("path", s.Name))
				reports[i].Missing = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("open %s stream: %w", s.Label, err)
			}
			defer rc.Close()

			stats, err := alignment.Scan(rc, s.Label, idx, opts, func(f alignment.Finding) error {
				found[i] = append(found[i], f)
				return gctx.Err()
			})
			reports[i].Stats = stats
			if err != nil {
				return err
			}

			log.Debug("Scanned alignment stream",
				zap.String("label", s.Label),
				zap.Int("lines", stats.Lines),
				zap.Int("malformed", stats.Malformed),
				zap.Int("unknown_gene", stats.UnknownGene),
				zap.Int("filtered", stats.Filtered),
				zap.Int("findings", stats.Findings),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return aggregate.Result{}, reports, 0, err
	}

	agg := aggregate.New()
	for _, fs := range found {
		for _, f := range fs {
			agg.Add(f)
		}
	}

	return agg.Result(), reports, agg.Total(), nil
}
