package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/afscan/logger"
	"github.com/yumyai/afscan/pkg/db"
	"github.com/yumyai/afscan/pkg/handler/request"
	"github.com/yumyai/afscan/pkg/pipeline"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// ScanSubmit queues a scan of uploaded aligner output and answers 202 with
// the job ID.
func (sctx *ScanContext) ScanSubmit(w http.ResponseWriter, r *http.Request) {

	var req request.ScanRequest

	r.Body = http.MaxBytesReader(w, r.Body, sctx.MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(&req)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	if err != nil {
		logger.Error(err.Error())
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	streams := make([]pipeline.Stream, 0, len(req.Streams))
	for _, s := range req.Streams {
		streams = append(streams, pipeline.TextStream(strings.TrimSpace(s.Label), s.Alignments))
	}

	job := sctx.Jobs.NewJob(req.Sample)
	logger.Info("Scan job queued", zap.String("job_id", job.ID), zap.String("sample", req.Sample), zap.Int("streams", len(streams)))

	go sctx.runJob(job.ID, req.Sample, streams)

	writeJSON(w, http.StatusAccepted, job)
}

func (sctx *ScanContext) runJob(jobID, sample string, streams []pipeline.Stream) {
	sctx.Jobs.SetRunning(jobID)

	rep, err := sctx.Runner.RunStreams(sctx.BaseCtx, sample, streams, sctx.Threads, sctx.MinIdentity)
	if err != nil {
		logger.Error("Scan job failed", zap.String("job_id", jobID), zap.Error(err))
		sctx.Jobs.FailJob(jobID, err)
		return
	}
	sctx.Jobs.CompleteJob(jobID, rep)
}

// ScanJobStatus returns the job, including its report once completed.
func (sctx *ScanContext) ScanJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	job, ok := sctx.Jobs.GetJob(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListRuns returns the stored runs, newest first.
func (sctx *ScanContext) ListRuns(w http.ResponseWriter, r *http.Request) {
	store := sctx.Runner.Store
	if store == nil {
		writeError(w, http.StatusNotFound, "No result store configured")
		return
	}

	runs, err := store.ListRuns(r.Context())
	if err != nil {
		logger.Error("List runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

type runResponse struct {
	Run    *db.Run     `json:"run"`
	Result interface{} `json:"result"`
}

// GetRun returns one stored run with its findings and summary.
func (sctx *ScanContext) GetRun(w http.ResponseWriter, r *http.Request) {
	store := sctx.Runner.Store
	if store == nil {
		writeError(w, http.StatusNotFound, "No result store configured")
		return
	}

	runID := r.PathValue("run_id")
	run, err := store.GetRun(r.Context(), runID)
	if errors.Is(err, db.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		logger.Error("Get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not load run")
		return
	}

	res, err := store.GetResult(r.Context(), runID)
	if err != nil {
		logger.Error("Get run result failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not load run")
		return
	}

	writeJSON(w, http.StatusOK, runResponse{Run: run, Result: res})
}
