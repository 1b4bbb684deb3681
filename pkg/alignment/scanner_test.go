package alignment

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/afscan/pkg/catalog"
)

// row builds a 14-column aligner line.
func row(query, gene string, sstart, send int, sseq string) string {
	return strings.Join([]string{
		query, gene, "98.5", "26", "1", "0", "1", "78",
		strconv.Itoa(sstart), strconv.Itoa(send), "1e-10", "55.1", "TRANSLATED", sseq,
	}, "\t")
}

// withResidue returns a sequence of length n filled with 'A' and residue at offset.
func withResidue(n, offset int, residue byte) string {
	b := []byte(strings.Repeat("A", n))
	b[offset] = residue
	return string(b)
}

var erg11 = catalog.MutationRecord{Gene: "ERG11", Position: 50, Reference: "F", Mutation: "L", Compound: "fluconazole"}

func TestMapPosition(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		position   int
		offset     int
		ok         bool
	}{
		{"ForwardMiddle", 100, 200, 150, 50, true},
		{"ReverseMiddle", 200, 100, 150, 50, true},
		{"ForwardStart", 100, 200, 100, 0, true},
		{"ForwardEnd", 100, 200, 200, 100, true},
		{"ReverseStart", 200, 100, 200, 0, true},
		{"ReverseEnd", 200, 100, 100, 100, true},
		{"SinglePosition", 7, 7, 7, 0, true},
		{"ForwardBefore", 100, 200, 99, 0, false},
		{"ForwardAfter", 100, 200, 201, 0, false},
		{"ReverseBefore", 200, 100, 99, 0, false},
		{"ReverseAfter", 200, 100, 201, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, ok := MapPosition(tt.start, tt.end, tt.position)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.offset, offset)
			}
		})
	}
}

func TestMapPositionOutOfRangeNeverMaps(t *testing.T) {
	for start := 1; start <= 12; start++ {
		for end := 1; end <= 12; end++ {
			lo, hi := start, end
			if lo > hi {
				lo, hi = hi, lo
			}
			for pos := 0; pos <= 14; pos++ {
				_, ok := MapPosition(start, end, pos)
				assert.Equal(t, pos >= lo && pos <= hi, ok, "start=%d end=%d pos=%d", start, end, pos)
			}
		}
	}
}

func TestParseRecord(t *testing.T) {
	rec, ok := ParseRecord(row("read1", "ERG11", 45, 70, "MKL") + "\r\n")
	require.True(t, ok)
	assert.Equal(t, "read1", rec.QueryID)
	assert.Equal(t, "ERG11", rec.Gene)
	assert.Equal(t, 98.5, rec.PercentIdentity)
	assert.Equal(t, 26, rec.AlignmentLength)
	assert.Equal(t, 45, rec.SubjectStart)
	assert.Equal(t, 70, rec.SubjectEnd)
	assert.Equal(t, 1e-10, rec.Evalue)
	assert.Equal(t, "TRANSLATED", rec.QueryTranslated)
	assert.Equal(t, "MKL", rec.SubjectAligned)
	assert.False(t, rec.Reverse())

	thirteen := strings.Join([]string{"read2", "FKS1", "90", "10", "0", "0", "1", "30", "20", "11", "1e-5", "40", "PQRS"}, "\t")
	rec, ok = ParseRecord(thirteen)
	require.True(t, ok)
	assert.Equal(t, "PQRS", rec.SubjectAligned)
	assert.Empty(t, rec.QueryTranslated)
	assert.True(t, rec.Reverse())

	_, ok = ParseRecord("read1\tERG11\t98.5")
	assert.False(t, ok, "too few fields")

	bad := strings.Replace(row("read1", "ERG11", 45, 70, "MKL"), "\t45\t", "\tx\t", 1)
	_, ok = ParseRecord(bad)
	assert.False(t, ok, "non-numeric subject start")
}

func TestScanScenario(t *testing.T) {
	idx := catalog.New(erg11)

	forward := row("read1", "ERG11", 45, 70, withResidue(26, 5, 'L'))
	reverse := row("read2", "ERG11", 70, 45, withResidue(26, 20, 'L'))
	unknown := row("read3", "CYP51", 45, 70, withResidue(26, 5, 'L'))

	findings, stats, err := Collect(strings.NewReader(strings.Join([]string{forward, reverse, unknown}, "\n")), "R1", idx, Options{})
	require.NoError(t, err)

	assert.Equal(t, []Finding{
		{Sample: "read1", Gene: "ERG11", Position: 50, Reference: "F", Mutation: "L", Compound: "fluconazole", Source: "R1"},
		{Sample: "read2", Gene: "ERG11", Position: 50, Reference: "F", Mutation: "L", Compound: "fluconazole", Source: "R1"},
	}, findings)
	assert.Equal(t, Stats{Lines: 3, UnknownGene: 1, Findings: 2}, stats)
}

func TestScanNoFinding(t *testing.T) {
	idx := catalog.New(erg11)

	tests := []struct {
		name string
		line string
	}{
		{"WildType", row("read1", "ERG11", 45, 70, withResidue(26, 5, 'F'))},
		{"OtherResidue", row("read1", "ERG11", 45, 70, withResidue(26, 5, 'W'))},
		{"BeforeAlignment", row("read1", "ERG11", 51, 70, withResidue(20, 0, 'L'))},
		{"AfterAlignment", row("read1", "ERG11", 10, 49, withResidue(40, 39, 'L'))},
		{"ReverseOutside", row("read1", "ERG11", 49, 10, withResidue(40, 0, 'L'))},
		{"AlignedSequenceTooShort", row("read1", "ERG11", 45, 70, "AAAA")},
		{"Truncated", "read1\tERG11\t98.5\t26\t1\t0\t1\t78\t45"},
		{"GeneCaseMismatch", row("read1", "erg11", 45, 70, withResidue(26, 5, 'L'))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, _, err := Collect(strings.NewReader(tt.line+"\n"), "SE", idx, Options{})
			require.NoError(t, err)
			assert.Empty(t, findings)
		})
	}
}

func TestScanMultipleEntriesPerRecord(t *testing.T) {
	idx := catalog.New(
		erg11,
		catalog.MutationRecord{Gene: "ERG11", Position: 52, Reference: "Y", Mutation: "H", Compound: "voriconazole"},
		catalog.MutationRecord{Gene: "ERG11", Position: 50, Reference: "F", Mutation: "L", Compound: "itraconazole"},
		catalog.MutationRecord{Gene: "ERG11", Position: 55, Reference: "G", Mutation: "S", Compound: "fluconazole"},
	)

	seq := []byte(withResidue(26, 5, 'L'))
	seq[7] = 'H'

	findings, stats, err := Collect(strings.NewReader(row("read1", "ERG11", 45, 70, string(seq))), "R2", idx, Options{})
	require.NoError(t, err)
	require.Len(t, findings, 3)
	assert.Equal(t, "fluconazole", findings[0].Compound)
	assert.Equal(t, 52, findings[1].Position)
	assert.Equal(t, "itraconazole", findings[2].Compound)
	assert.Equal(t, 3, stats.Findings)
}

func TestScanMalformedLinesAreSkipped(t *testing.T) {
	idx := catalog.New(erg11)
	input := strings.Join([]string{
		"garbage",
		"",
		row("read1", "ERG11", 45, 70, withResidue(26, 5, 'L')),
		"read9\tERG11\t100",
	}, "\n")

	findings, stats, err := Collect(strings.NewReader(input), "R1", idx, Options{})
	require.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 4, stats.Lines)
}

func TestScanOverlongLinesAreSkipped(t *testing.T) {
	idx := catalog.New(erg11)
	valid := row("read1", "ERG11", 45, 70, withResidue(26, 5, 'L'))

	tests := []struct {
		name      string
		limit     int
		long      string
		malformed int
		findings  int
	}{
		{"LongerThanReadBuffer", 100 * 1024, strings.Repeat("X", 300*1024), 1, 2},
		{"OneByteOverLimit", len(valid), valid + "A", 1, 2},
		{"ExactlyAtLimit", len(valid), valid, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid + "\n" + tt.long + "\r\n" + valid + "\n"
			findings, stats, err := Collect(strings.NewReader(input), "R1", idx, Options{MaxLineBytes: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, 3, stats.Lines)
			assert.Equal(t, tt.malformed, stats.Malformed)
			assert.Len(t, findings, tt.findings)
		})
	}
}

func TestScanMinIdentity(t *testing.T) {
	idx := catalog.New(erg11)
	line := row("read1", "ERG11", 45, 70, withResidue(26, 5, 'L'))

	findings, stats, err := Collect(strings.NewReader(line), "R1", idx, Options{MinIdentity: 99})
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Equal(t, 1, stats.Filtered)

	findings, _, err = Collect(strings.NewReader(line), "R1", idx, Options{MinIdentity: 90})
	require.NoError(t, err)
	assert.Len(t, findings, 1)
}

func TestScanVisitError(t *testing.T) {
	idx := catalog.New(erg11)
	line := row("read1", "ERG11", 45, 70, withResidue(26, 5, 'L'))
	input := line + "\n" + line + "\n"

	stop := errors.New("stop")
	calls := 0
	_, err := Scan(strings.NewReader(input), "R1", idx, Options{}, func(Finding) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestScanIsRepeatable(t *testing.T) {
	idx := catalog.New(erg11)
	input := row("read1", "ERG11", 45, 70, withResidue(26, 5, 'L'))

	first, _, err := Collect(strings.NewReader(input), "R1", idx, Options{})
	require.NoError(t, err)
	second, _, err := Collect(strings.NewReader(input), "R1", idx, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScanFile(t *testing.T) {
	idx := catalog.New(erg11)
	dir := t.TempDir()

	path := filepath.Join(dir, "sample_R1.m8")
	require.NoError(t, os.WriteFile(path, []byte(row("read1", "ERG11", 45, 70, withResidue(26, 5, 'L'))+"\n"), 0o644))

	var got []Finding
	stats, err := ScanFile(path, "R1", idx, Options{}, func(f Finding) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, stats.Findings)

	_, err = ScanFile(filepath.Join(dir, "sample_R2.m8"), "R2", idx, Options{}, func(Finding) error { return nil })
	assert.ErrorIs(t, err, ErrMissingStream)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
