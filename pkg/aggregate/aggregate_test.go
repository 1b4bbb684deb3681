package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/afscan/pkg/alignment"
)

func finding(sample, source string) alignment.Finding {
	return alignment.Finding{
		Sample: sample, Gene: "ERG11", Position: 50,
		Reference: "F", Mutation: "L", Compound: "fluconazole", Source: source,
	}
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(nil)
	assert.NotNil(t, res.Findings)
	assert.NotNil(t, res.Summary)
	assert.Empty(t, res.Findings)
	assert.Empty(t, res.Summary)
}

func TestAggregateSameReadTwoStreams(t *testing.T) {
	res := Aggregate([]alignment.Finding{finding("frag1", "R1"), finding("frag1", "R2")})

	require.Len(t, res.Findings, 1)
	assert.Equal(t, "R1", res.Findings[0].Source, "first seen wins")

	require.Len(t, res.Summary, 1)
	assert.Equal(t, SummaryEntry{
		Gene: "ERG11", Position: 50, Reference: "F", Mutation: "L",
		Compound: "fluconazole", SupportReads: 2,
	}, res.Summary[0])
}

func TestAggregateDedupKeyIgnoresCompound(t *testing.T) {
	other := finding("read1", "R1")
	other.Compound = "voriconazole"

	res := Aggregate([]alignment.Finding{finding("read1", "R1"), other})

	// Same read, gene, position and mutation: one results row.
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "fluconazole", res.Findings[0].Compound)

	// The summary still distinguishes compounds.
	require.Len(t, res.Summary, 2)
	assert.Equal(t, "fluconazole", res.Summary[0].Compound)
	assert.Equal(t, "voriconazole", res.Summary[1].Compound)
	assert.Equal(t, 1, res.Summary[0].SupportReads)
	assert.Equal(t, 1, res.Summary[1].SupportReads)
}

func TestAggregateOrderAndAdditivity(t *testing.T) {
	fks1 := alignment.Finding{Sample: "read2", Gene: "FKS1", Position: 641, Reference: "F", Mutation: "S", Compound: "caspofungin", Source: "R1"}
	input := []alignment.Finding{
		finding("read3", "R1"),
		fks1,
		finding("read1", "R1"),
		finding("read3", "R2"),
		fks1,
		finding("read1", "R2"),
	}

	res := Aggregate(input)

	samples := make([]string, 0, len(res.Findings))
	for _, f := range res.Findings {
		samples = append(samples, f.Sample)
	}
	assert.Equal(t, []string{"read3", "read2", "read1"}, samples)

	require.Len(t, res.Summary, 2)
	assert.Equal(t, "ERG11", res.Summary[0].Gene)
	assert.Equal(t, 4, res.Summary[0].SupportReads)
	assert.Equal(t, "FKS1", res.Summary[1].Gene)
	assert.Equal(t, 2, res.Summary[1].SupportReads)

	total := 0
	for _, s := range res.Summary {
		total += s.SupportReads
	}
	assert.Equal(t, len(input), total)
}

func TestAggregateIdempotent(t *testing.T) {
	input := []alignment.Finding{finding("a", "R1"), finding("b", "R1"), finding("a", "R2"), finding("b", "SE")}

	first := Aggregate(input)
	second := Aggregate(input)
	assert.Equal(t, first, second)

	again := Aggregate(first.Findings)
	assert.Equal(t, first.Findings, again.Findings)
}

func TestAggregatorIncremental(t *testing.T) {
	a := New()
	a.Add(finding("read1", "R1"))
	snapshot := a.Result()

	a.Add(finding("read2", "R1"))
	assert.Len(t, snapshot.Findings, 1, "earlier results are not affected by later adds")
	assert.Len(t, a.Result().Findings, 2)
	assert.Equal(t, 2, a.Total())
}
