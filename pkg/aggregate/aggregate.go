package aggregate

import (
	"github.com/yumyai/afscan/pkg/alignment"
)

// SummaryEntry counts the reads supporting one cataloged mutation.
type SummaryEntry struct {
	Gene         string `json:"gene"`
	Position     int    `json:"position"`
	Reference    string `json:"reference"`
	Mutation     string `json:"mutation"`
	Compound     string `json:"compound"`
	SupportReads int    `json:"support_reads"`
}

// Result holds the per-read table and the per-mutation summary.
type Result struct {
	Findings []alignment.Finding `json:"findings"`
	Summary  []SummaryEntry      `json:"summary"`
}

// A read is reported once per gene, position and mutant residue, whichever
// stream saw it first.
type dedupKey struct {
	Sample   string
	Gene     string
	Position int
	Mutation string
}

type summaryKey struct {
	Gene      string
	Position  int
	Reference string
	Mutation  string
	Compound  string
}

// Aggregator accumulates findings one at a time. Not safe for concurrent use.
type Aggregator struct {
	seen     map[dedupKey]struct{}
	findings []alignment.Finding

	counts  map[summaryKey]int
	summary []summaryKey
	total   int
}

func New() *Aggregator {
	return &Aggregator{
		seen:     make(map[dedupKey]struct{}),
		findings: []alignment.Finding{},
		counts:   make(map[summaryKey]int),
	}
}

// Add records one raw finding. Every call counts towards the summary, even
// when the finding is a duplicate for the per-read table.
func (a *Aggregator) Add(f alignment.Finding) {
	a.total++

	sk := summaryKey{f.Gene, f.Position, f.Reference, f.Mutation, f.Compound}
	if _, ok := a.counts[sk]; !ok {
		a.summary = append(a.summary, sk)
	}
	a.counts[sk]++

	dk := dedupKey{f.Sample, f.Gene, f.Position, f.Mutation}
	if _, dup := a.seen[dk]; dup {
		return
	}
	a.seen[dk] = struct{}{}
	a.findings = append(a.findings, f)
}

// Total is the number of raw findings added so far.
func (a *Aggregator) Total() int {
	return a.total
}

// Result returns copies of the deduplicated findings and the summary, both
// in first-seen order.
func (a *Aggregator) Result() Result {
	findings := make([]alignment.Finding, len(a.findings))
	copy(findings, a.findings)

	summary := make([]SummaryEntry, 0, len(a.summary))
	for _, k := range a.summary {
		summary = append(summary, SummaryEntry{
			Gene:         k.Gene,
			Position:     k.Position,
			Reference:    k.Reference,
			Mutation:     k.Mutation,
			Compound:     k.Compound,
			SupportReads: a.counts[k],
		})
	}

	return Result{Findings: findings, Summary: summary}
}

// Aggregate deduplicates findings and tallies read support per mutation.
func Aggregate(findings []alignment.Finding) Result {
	a := New()
	for _, f := range findings {
		a.Add(f)
	}
	return a.Result()
}
