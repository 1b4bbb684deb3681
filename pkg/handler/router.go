package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/yumyai/afscan/pkg/middle"
)

// NewRouter wires the API routes. log is used by the request middleware.
func NewRouter(sctx *ScanContext, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", sctx.HealthCheck)

	mux.HandleFunc("POST /api/v1/scan", sctx.ScanSubmit)
	mux.HandleFunc("GET /api/v1/jobs/{job_id}", sctx.ScanJobStatus)
	mux.HandleFunc("GET /jobs/{job_id}", sctx.ScanJobPage)

	mux.HandleFunc("GET /api/v1/runs", sctx.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{run_id}", sctx.GetRun)

	// Request ID runs first so the logging middleware sees it.
	return middle.RequestIDMiddleware(log)(middle.LoggingMiddleware(log)(mux))
}
