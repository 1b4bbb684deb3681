package alignment

import (
	"strconv"
	"strings"
)

// MinFields is the smallest number of tab-separated columns in a usable
// aligner row.
const MinFields = 13

// Record is one row of tabular aligner output (outfmt 6 with the translated
// query and aligned sequence appended).
type Record struct {
	QueryID         string
	Gene            string
	PercentIdentity float64
	AlignmentLength int
	Mismatches      int
	GapOpenings     int
	QueryStart      int
	QueryEnd        int
	SubjectStart    int
	SubjectEnd      int
	Evalue          float64
	Bitscore        float64
	QueryTranslated string
	// SubjectAligned is the aligned segment ordered from SubjectStart to
	// SubjectEnd, so index 0 is always SubjectStart.
	SubjectAligned string
}

// Reverse reports whether the alignment runs backwards on the reference.
func (r Record) Reverse() bool {
	return r.SubjectStart > r.SubjectEnd
}

// ParseRecord splits one aligner line. It returns false for malformed lines:
// fewer than MinFields columns or subject coordinates that are not integers.
// With exactly MinFields columns the last one is the aligned sequence; with
// more, column 13 is the translated query and column 14 the aligned sequence.
func ParseRecord(line string) (Record, bool) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, "\t")
	if len(fields) < MinFields {
		return Record{}, false
	}

	sstart, err := strconv.Atoi(strings.TrimSpace(fields[8]))
	if err != nil {
		return Record{}, false
	}
	send, err := strconv.Atoi(strings.TrimSpace(fields[9]))
	if err != nil {
		return Record{}, false
	}

	rec := Record{
		QueryID:      fields[0],
		Gene:         fields[1],
		SubjectStart: sstart,
		SubjectEnd:   send,
	}

	// Pass-through columns; a bad value leaves the zero value in place.
	rec.PercentIdentity, _ = strconv.ParseFloat(fields[2], 64)
	rec.AlignmentLength, _ = strconv.Atoi(fields[3])
	rec.Mismatches, _ = strconv.Atoi(fields[4])
	rec.GapOpenings, _ = strconv.Atoi(fields[5])
	rec.QueryStart, _ = strconv.Atoi(fields[6])
	rec.QueryEnd, _ = strconv.Atoi(fields[7])
	rec.Evalue, _ = strconv.ParseFloat(fields[10], 64)
	rec.Bitscore, _ = strconv.ParseFloat(fields[11], 64)

	if len(fields) == MinFields {
		rec.SubjectAligned = fields[12]
	} else {
		rec.QueryTranslated = fields[12]
		rec.SubjectAligned = fields[13]
	}

	return rec, true
}

// MapPosition converts a 1-based reference position into a 0-based offset
// of the aligned sequence. ok is false when position lies outside the
// aligned span.
func MapPosition(start, end, position int) (offset int, ok bool) {
	if start <= end {
		if position < start || position > end {
			return 0, false
		}
		return position - start, true
	}

	if position < end || position > start {
		return 0, false
	}
	return start - position, true
}
