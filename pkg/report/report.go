package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yumyai/afscan/pkg/aggregate"
	"github.com/yumyai/afscan/pkg/alignment"
)

// Column names are fixed; downstream tools read them by name.
var (
	ResultsHeader = []string{"Sample", "Gene", "Position", "Reference", "Mutation", "Fungicide", "Read"}
	SummaryHeader = []string{"Gene", "Position", "Reference", "Mutation", "Fungicide", "Support_Reads"}
)

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return cw
}

// WriteResults writes one row per finding under ResultsHeader.
func WriteResults(w io.Writer, findings []alignment.Finding) error {
	cw := newWriter(w)
	if err := cw.Write(ResultsHeader); err != nil {
		return err
	}
	for _, f := range findings {
		row := []string{f.Sample, f.Gene, strconv.Itoa(f.Position), f.Reference, f.Mutation, f.Compound, f.Source}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes one row per summary entry under SummaryHeader.
func WriteSummary(w io.Writer, entries []aggregate.SummaryEntry) error {
	cw := newWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{e.Gene, strconv.Itoa(e.Position), e.Reference, e.Mutation, e.Compound, strconv.Itoa(e.SupportReads)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Paths of the two tables for a run prefix.
type Paths struct {
	Results string `json:"results"`
	Summary string `json:"summary"`
}

func PathsFor(dir, prefix string) Paths {
	return Paths{
		Results: filepath.Join(dir, prefix+"_results.tsv"),
		Summary: filepath.Join(dir, prefix+"_summary.tsv"),
	}
}

// WriteFiles writes both tables into dir, creating it if needed. Tables are
// written even when there are no findings.
func WriteFiles(dir, prefix string, res aggregate.Result) (Paths, error) {
	paths := PathsFor(dir, prefix)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return paths, fmt.Errorf("create output dir: %w", err)
	}

	if err := writeFile(paths.Results, func(w io.Writer) error { return WriteResults(w, res.Findings) }); err != nil {
		return paths, err
	}
	if err := writeFile(paths.Summary, func(w io.Writer) error { return WriteSummary(w, res.Summary) }); err != nil {
		return paths, err
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(fh); err != nil {
		fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return fh.Close()
}
