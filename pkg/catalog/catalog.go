// Loading of the resistance-mutation catalog

package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mitchellh/mapstructure"
)

// MutationRecord is one catalog row.
type MutationRecord struct {
	Gene      string `mapstructure:"gene" json:"gene"`
	Position  int    `mapstructure:"position" json:"position"`
	Reference string `mapstructure:"reference" json:"reference"`
	Mutation  string `mapstructure:"mutation" json:"mutation"`
	Compound  string `mapstructure:"compound" json:"compound"`
}

// Index maps gene name to its catalog entries in file order. It is never
// modified after Load returns, so it can be shared between goroutines.
type Index struct {
	byGene map[string][]MutationRecord
	genes  []string
	size   int
}

var requiredColumns = []string{"gene", "position", "reference", "mutation"}

// Column names accepted for the compound a mutation confers resistance to.
var compoundAliases = []string{"fungicide", "compound", "drug", "antifungal"}

// Load reads the catalog at path. Tab is used as the delimiter for .tsv,
// .tab and .txt files, comma for everything else.
func Load(path string) (*Index, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer fh.Close()

	return Parse(fh, path, DelimiterFor(path))
}

func DelimiterFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab", ".txt":
		return '\t'
	default:
		return ','
	}
}

// Parse builds an Index from delimited catalog text. name is only used in
// error messages.
func Parse(r io.Reader, name string, comma rune) (*Index, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	// A whitespace delimiter would be trimmed too, merging empty cells.
	reader.TrimLeadingSpace = !unicode.IsSpace(comma)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{File: name, Column: "gene"}
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header %s: %w", name, err)
	}

	columns, err := mapColumns(header, name)
	if err != nil {
		return nil, err
	}

	idx := &Index{byGene: make(map[string][]MutationRecord)}

	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", name, err)
		}
		line, _ := reader.FieldPos(0)

		if isBlank(fields) {
			continue
		}

		row := make(map[string]interface{}, len(columns))
		for key, col := range columns {
			if col < len(fields) {
				row[key] = strings.TrimSpace(fields[col])
			} else {
				row[key] = ""
			}
		}

		rec, err := decodeRow(row)
		if err != nil || rec.Position < 1 {
			return nil, &ParseError{File: name, Line: line, Column: "position", Value: fmt.Sprint(row["position"])}
		}

		idx.add(rec)
	}

	return idx, nil
}

// mapColumns resolves header names to field indexes keyed by the
// MutationRecord tag names.
func mapColumns(header []string, name string) (map[string]int, error) {
	position := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := position[key]; !seen {
			position[key] = i
		}
	}

	columns := make(map[string]int, len(requiredColumns)+1)
	for _, col := range requiredColumns {
		i, ok := position[col]
		if !ok {
			return nil, &SchemaError{File: name, Column: col}
		}
		columns[col] = i
	}

	for _, alias := range compoundAliases {
		if i, ok := position[alias]; ok {
			columns["compound"] = i
			break
		}
	}
	if _, ok := columns["compound"]; !ok {
		return nil, &SchemaError{File: name, Column: compoundAliases[0]}
	}

	return columns, nil
}

func decodeRow(row map[string]interface{}) (MutationRecord, error) {
	var rec MutationRecord
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rec,
	})
	if err != nil {
		return rec, err
	}
	if err := decoder.Decode(row); err != nil {
		return rec, err
	}
	return rec, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// New builds an Index from records already in memory.
func New(records ...MutationRecord) *Index {
	idx := &Index{byGene: make(map[string][]MutationRecord)}
	for _, rec := range records {
		idx.add(rec)
	}
	return idx
}

func (idx *Index) add(rec MutationRecord) {
	if _, ok := idx.byGene[rec.Gene]; !ok {
		idx.genes = append(idx.genes, rec.Gene)
	}
	idx.byGene[rec.Gene] = append(idx.byGene[rec.Gene], rec)
	idx.size++
}

// Lookup returns the entries for gene. The returned slice must not be
// modified.
func (idx *Index) Lookup(gene string) []MutationRecord {
	return idx.byGene[gene]
}

// Genes lists catalog genes in first-seen order.
func (idx *Index) Genes() []string {
	out := make([]string, len(idx.genes))
	copy(out, idx.genes)
	return out
}

// Len is the number of catalog entries.
func (idx *Index) Len() int {
	return idx.size
}
