package alignment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/yumyai/afscan/pkg/catalog"
)

// ErrMissingStream is returned by ScanFile when the alignment file does not
// exist. Callers treat it as a stream with no findings.
var ErrMissingStream = errors.New("alignment stream does not exist")

// DefaultMaxLineBytes is the row size limit used when Options leaves it unset.
const DefaultMaxLineBytes = 16 * 1024 * 1024

// Finding is one cataloged mutation observed in one read.
type Finding struct {
	Sample    string `json:"sample"`
	Gene      string `json:"gene"`
	Position  int    `json:"position"`
	Reference string `json:"reference"`
	Mutation  string `json:"mutation"`
	Compound  string `json:"compound"`
	Source    string `json:"read"`
}

// Stats summarises one pass over a stream.
type Stats struct {
	Lines       int
	Malformed   int
	Filtered    int
	UnknownGene int
	Findings    int
}

// Options tweak a scan. The zero value reports every match.
type Options struct {
	// MinIdentity drops records whose percent identity is below it.
	MinIdentity float64
	// MaxLineBytes caps a single row; longer rows count as malformed.
	// Zero means DefaultMaxLineBytes.
	MaxLineBytes int
}

// Scan reads aligner rows from r and calls visit for every finding, in input
// order. Malformed rows are counted and skipped. The first error from visit
// stops the scan and is returned.
func Scan(r io.Reader, label string, idx *catalog.Index, opts Options, visit func(Finding) error) (Stats, error) {
	var stats Stats

	limit := opts.MaxLineBytes
	if limit <= 0 {
		limit = DefaultMaxLineBytes
	}

	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte

	for {
		raw, tooLong, err := readLine(br, buf[:0], limit)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read %s alignments: %w", label, err)
		}
		buf = raw

		stats.Lines++
		if tooLong {
			stats.Malformed++
			continue
		}
		if len(raw) == 0 {
			continue
		}
		line := string(raw)

		rec, ok := ParseRecord(line)
		if !ok {
			stats.Malformed++
			continue
		}

		entries := idx.Lookup(rec.Gene)
		if len(entries) == 0 {
			stats.UnknownGene++
			continue
		}

		if opts.MinIdentity > 0 && rec.PercentIdentity < opts.MinIdentity {
			stats.Filtered++
			continue
		}

		for _, entry := range entries {
			if !Observed(rec, entry) {
				continue
			}
			stats.Findings++
			if err := visit(newFinding(rec, entry, label)); err != nil {
				return stats, err
			}
		}
	}

	return stats, nil
}

// readLine appends the next line of br to buf without its line ending.
// A line longer than limit is drained and reported with tooLong set. io.EOF
// is returned only once no bytes are left.
func readLine(br *bufio.Reader, buf []byte, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !tooLong && len(buf)+len(chunk) > limit+2 {
			tooLong = true
			buf = buf[:0]
		}
		if !tooLong {
			buf = append(buf, chunk...)
		}

		switch {
		case rerr == nil:
			return endLine(buf, tooLong, limit)
		case errors.Is(rerr, bufio.ErrBufferFull):
			continue
		case errors.Is(rerr, io.EOF):
			if len(buf) == 0 && !tooLong {
				return nil, false, io.EOF
			}
			return endLine(buf, tooLong, limit)
		default:
			return nil, false, rerr
		}
	}
}

func endLine(b []byte, tooLong bool, limit int) ([]byte, bool, error) {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	if len(b) > limit {
		return b[:0], true, nil
	}
	return b, tooLong, nil
}

// ScanFile opens path and scans it. A missing file yields ErrMissingStream.
func ScanFile(path, label string, idx *catalog.Index, opts Options, visit func(Finding) error) (Stats, error) {
	fh, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Stats{}, fmt.Errorf("%w: %s: %w", ErrMissingStream, path, err)
	}
	if err != nil {
		return Stats{}, err
	}
	defer fh.Close()

	return Scan(fh, label, idx, opts, visit)
}

// Collect scans r and returns all findings.
func Collect(r io.Reader, label string, idx *catalog.Index, opts Options) ([]Finding, Stats, error) {
	var out []Finding
	stats, err := Scan(r, label, idx, opts, func(f Finding) error {
		out = append(out, f)
		return nil
	})
	return out, stats, err
}

// Observed reports whether rec carries the mutant residue of entry. A
// wild-type residue, a position outside the alignment or an offset past the
// end of the aligned sequence all count as not observed.
func Observed(rec Record, entry catalog.MutationRecord) bool {
	offset, ok := MapPosition(rec.SubjectStart, rec.SubjectEnd, entry.Position)
	if !ok || offset >= len(rec.SubjectAligned) {
		return false
	}
	return rec.SubjectAligned[offset:offset+1] == entry.Mutation
}

func newFinding(rec Record, entry catalog.MutationRecord, label string) Finding {
	return Finding{
		Sample:    rec.QueryID,
		Gene:      entry.Gene,
		Position:  entry.Position,
		Reference: entry.Reference,
		Mutation:  entry.Mutation,
		Compound:  entry.Compound,
		Source:    label,
	}
}
