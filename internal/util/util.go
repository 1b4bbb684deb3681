package util

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || err != nil {
		return false
	}
	return info.IsDir()
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || err != nil {
		return false
	}
	return !info.IsDir()
}

// StripExt returns the base name of path with all read-file extensions
// removed, e.g. "sample_R1.fastq.gz" -> "sample_R1".
func StripExt(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".bz2", ".fastq", ".fq", ".fasta", ".fa", ".tsv", ".txt"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
