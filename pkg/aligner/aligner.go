package aligner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrAlignerNotFound is returned when the aligner binary is not on PATH.
var ErrAlignerNotFound = errors.New("aligner executable not found")

// OutputFields is the tabular layout the scanner expects.
var OutputFields = []string{
	"qseqid", "sseqid", "pident", "length", "mismatch", "gapopen",
	"qstart", "qend", "sstart", "send", "evalue", "bitscore",
	"qseq_translated", "sseq",
}

// Aligner runs a DIAMOND-compatible protein aligner against translated reads.
type Aligner struct {
	Command   string
	Mode      string
	Database  string
	Threads   int
	ExtraArgs []string
}

// Check verifies the aligner can be found.
func (a *Aligner) Check() error {
	if _, err := exec.LookPath(a.Command); err != nil {
		return fmt.Errorf("%w: %s", ErrAlignerNotFound, a.Command)
	}
	return nil
}

// Args builds the command line for one read file.
func (a *Aligner) Args(readsPath, outPath string) []string {
	mode := a.Mode
	if mode == "" {
		mode = "blastx"
	}
	args := []string{mode, "--db", a.Database, "--query", readsPath, "--out", outPath}
	if a.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(a.Threads))
	}
	args = append(args, "--outfmt", "6")
	args = append(args, OutputFields...)
	args = append(args, a.ExtraArgs...)
	return args
}

// Run aligns readsPath and writes the tabular output to outPath.
func (a *Aligner) Run(ctx context.Context, readsPath, outPath string) error {
	if a.Database == "" {
		return errors.New("aligner database is not set")
	}

	cmd := exec.CommandContext(ctx, a.Command, a.Args(readsPath, outPath)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("failed to execute %s: %w", a.Command, err)
		}
		return fmt.Errorf("failed to execute %s: %w - %s", a.Command, err, msg)
	}

	return nil
}
