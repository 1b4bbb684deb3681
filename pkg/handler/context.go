package handler

// DI for all handlers.

import (
	"context"

	"github.com/yumyai/afscan/pkg/pipeline"
)

// DefaultMaxBodyBytes is the scan request body limit unless configured.
const DefaultMaxBodyBytes = 256 << 20

type ScanContext struct {
	Runner      *pipeline.Runner
	Jobs        *ScanJobManager
	Threads     int
	MinIdentity float64
	// MaxBodyBytes caps a scan request body.
	MaxBodyBytes int64
	// Jobs outlive the request that submitted them; they use this context.
	BaseCtx context.Context
}

func NewScanContext(runner *pipeline.Runner, threads int, minIdentity float64) *ScanContext {
	return &ScanContext{
		Runner:      runner,
		Jobs:        NewScanJobManager(),
		Threads:     threads,
		MinIdentity: minIdentity,
		BaseCtx:     context.Background(),

		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}
