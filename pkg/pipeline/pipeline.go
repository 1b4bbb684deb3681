package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yumyai/afscan/internal/util"
	"github.com/yumyai/afscan/pkg/aggregate"
	"github.com/yumyai/afscan/pkg/aligner"
	"github.com/yumyai/afscan/pkg/alignment"
	"github.com/yumyai/afscan/pkg/catalog"
	"github.com/yumyai/afscan/pkg/db"
	"github.com/yumyai/afscan/pkg/report"
)

// Labels used for read files.
const (
	LabelR1 = "R1"
	LabelR2 = "R2"
	LabelSE = "SE"
)

// Input is one read file, or the aligner output for it. When AlignmentPath
// is empty the reads are aligned first.
type Input struct {
	Label         string
	ReadsPath     string
	AlignmentPath string
}

type Config struct {
	Sample           string
	Inputs           []Input
	OutputDir        string // no tables are written when empty
	WorkDir          string // a temporary directory is used when empty
	Threads          int
	KeepIntermediate bool
	MinIdentity      float64
	Aligner          *aligner.Aligner
}

// Report is the outcome of one run.
type Report struct {
	RunID       string           `json:"run_id"`
	Sample      string           `json:"sample"`
	CreatedAt   time.Time        `json:"created_at"`
	Streams     []StreamReport   `json:"streams"`
	RawFindings int              `json:"raw_findings"`
	Result      aggregate.Result `json:"result"`
	Paths       report.Paths     `json:"paths"`
}

// Runner executes runs against one catalog. Store is optional.
type Runner struct {
	Catalog *catalog.Index
	Store   *db.Store
	Log     *zap.Logger
}

func NewRunner(idx *catalog.Index, store *db.Store, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Catalog: idx, Store: store, Log: log}
}

// Run aligns reads where needed, scans every stream, aggregates, writes the
// tables and stores the run.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Report, error) {
	if len(cfg.Inputs) == 0 {
		return nil, errors.New("no inputs given")
	}

	rep, log := r.newReport(cfg.Sample)
	log.Info("Run started", zap.Int("inputs", len(cfg.Inputs)), zap.Int("catalog_entries", r.Catalog.Len()))

	streams, cleanup, err := r.prepare(ctx, cfg, log)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	if err := r.scan(ctx, rep, streams, cfg.Threads, cfg.MinIdentity, log); err != nil {
		return nil, err
	}

	if cfg.OutputDir != "" {
		prefix := cfg.Sample
		if prefix == "" {
			prefix = "afscan"
		}
		paths, err := report.WriteFiles(cfg.OutputDir, prefix, rep.Result)
		if err != nil {
			return nil, err
		}
		rep.Paths = paths
		log.Info("Tables written", zap.String("results", paths.Results), zap.String("summary", paths.Summary))
	}

	if err := r.save(ctx, rep, log); err != nil {
		return nil, err
	}
	return rep, nil
}

// RunStreams scans streams that are already aligned, e.g. uploaded over
// HTTP, and stores the run. No tables are written.
func (r *Runner) RunStreams(ctx context.Context, sample string, streams []Stream, threads int, minIdentity float64) (*Report, error) {
	rep, log := r.newReport(sample)
	log.Info("Run started", zap.Int("streams", len(streams)), zap.Int("catalog_entries", r.Catalog.Len()))

	if err := r.scan(ctx, rep, streams, threads, minIdentity, log); err != nil {
		return nil, err
	}
	if err := r.save(ctx, rep, log); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *Runner) newReport(sample string) (*Report, *zap.Logger) {
	rep := &Report{
		RunID:     uuid.NewString(),
		Sample:    sample,
		CreatedAt: time.Now().UTC(),
	}
	return rep, r.Log.With(zap.String("run_id", rep.RunID), zap.String("sample", sample))
}

func (r *Runner) scan(ctx context.Context, rep *Report, streams []Stream, threads int, minIdentity float64, log *zap.Logger) error {
	res, streamReports, raw, err := ScanStreams(ctx, r.Catalog, streams, threads, alignment.Options{MinIdentity: minIdentity}, log)
	if err != nil {
		return err
	}
	rep.Streams = streamReports
	rep.RawFindings = raw
	rep.Result = res
	return nil
}

func (r *Runner) save(ctx context.Context, rep *Report, log *zap.Logger) error {
	if r.Store != nil {
		if err := r.Store.SaveRun(ctx, rep.storeRun(), rep.Result); err != nil {
			return fmt.Errorf("store run: %w", err)
		}
	}

	log.Info("Run finished",
		zap.Int("raw_findings", rep.RawFindings),
		zap.Int("findings", len(rep.Result.Findings)),
		zap.Int("mutations", len(rep.Result.Summary)),
	)
	return nil
}

// prepare aligns inputs without alignments and returns one stream per
// input. The cleanup func removes intermediate files unless they are kept.
func (r *Runner) prepare(ctx context.Context, cfg Config, log *zap.Logger) ([]Stream, func(), error) {
	var intermediates []string
	tempDir := ""

	cleanup := func() {
		if cfg.KeepIntermediate {
			return
		}
		for _, path := range intermediates {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("Could not remove intermediate file", zap.String("path", path), zap.Error(err))
			}
		}
		if tempDir != "" {
			os.RemoveAll(tempDir)
		}
	}

	streams := make([]Stream, 0, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		if in.AlignmentPath != "" {
			streams = append(streams, FileStream(in.Label, in.AlignmentPath))
			continue
		}

		if cfg.Aligner == nil {
			return nil, cleanup, fmt.Errorf("input %s has reads but no aligner is configured", in.Label)
		}
		if !util.FileExists(in.ReadsPath) {
			log.Warn("Read file missing, skipping", zap.String("label", in.Label), zap.String("path", in.ReadsPath))
			continue
		}

		workDir := cfg.WorkDir
		if workDir == "" {
			if tempDir == "" {
				dir, err := os.MkdirTemp("", "afscan-*")
				if err != nil {
					return nil, cleanup, err
				}
				tempDir = dir
			}
			workDir = tempDir
		} else if err := os.MkdirAll(workDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		out := filepath.Join(workDir, fmt.Sprintf("%s_%s.m8", util.StripExt(in.ReadsPath), in.Label))
		intermediates = append(intermediates, out)

		log.Info("Aligning reads", zap.String("label", in.Label), zap.String("reads", in.ReadsPath))
		start := time.Now()
		if err := cfg.Aligner.Run(ctx, in.ReadsPath, out); err != nil {
			return nil, cleanup, fmt.Errorf("align %s: %w", in.Label, err)
		}
		log.Debug("Alignment done", zap.String("label", in.Label), zap.Duration("duration", time.Since(start)))

		streams = append(streams, FileStream(in.Label, out))
	}

	return streams, cleanup, nil
}

func (rep *Report) storeRun() db.Run {
	labels := make([]string, 0, len(rep.Streams))
	for _, s := range rep.Streams {
		labels = append(labels, s.Label)
	}
	return db.Run{
		ID:          rep.RunID,
		Sample:      rep.Sample,
		Streams:     labels,
		RawFindings: rep.RawFindings,
		CreatedAt:   rep.CreatedAt,
	}
}

// InputsFromReads builds inputs for paired (r1, r2) or single-end (se)
// reads. Empty paths are ignored.
func InputsFromReads(r1, r2, se string) []Input {
	var inputs []Input
	for _, in := range []Input{{Label: LabelR1, ReadsPath: r1}, {Label: LabelR2, ReadsPath: r2}, {Label: LabelSE, ReadsPath: se}} {
		if in.ReadsPath != "" {
			inputs = append(inputs, in)
		}
	}
	return inputs
}
