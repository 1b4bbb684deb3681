package request

import (
	"errors"
	"fmt"
	"strings"
)

// Aligner output for one read file.
type StreamPayload struct {
	Label      string `json:"label"`      // R1, R2, SE or a file name
	Alignments string `json:"alignments"` // tabular aligner output, one record per line
}

// Body of POST /api/v1/scan
type ScanRequest struct {
	Sample  string          `json:"sample"`
	Streams []StreamPayload `json:"streams"`
}

// Validate checks the request before a job is queued.
func (r *ScanRequest) Validate() error {
	if len(r.Streams) == 0 {
		return errors.New("at least one stream is required")
	}

	seen := make(map[string]bool, len(r.Streams))
	for i, s := range r.Streams {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			return fmt.Errorf("stream %d has no label", i)
		}
		if seen[label] {
			return fmt.Errorf("duplicate stream label %q", label)
		}
		seen[label] = true
	}
	return nil
}
