package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/yumyai/afscan/logger"
	"github.com/yumyai/afscan/pkg/render"
)

const pageRefreshSeconds = 3

// ScanJobPage renders the job as an HTML page that refreshes until the scan
// finishes.
func (sctx *ScanContext) ScanJobPage(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	job, ok := sctx.Jobs.GetJob(jobID)
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	done := job.Status == ScanJobCompleted || job.Status == ScanJobFailed
	data := render.ScanPageData{
		JobID:                  job.ID,
		Sample:                 job.Sample,
		Status:                 string(job.Status),
		ErrorMessage:           job.Error,
		Done:                   done,
		ShouldRefresh:          !done,
		RefreshIntervalSeconds: pageRefreshSeconds,
	}
	if job.Report != nil {
		data.RawFindings = job.Report.RawFindings
		data.Summary = job.Report.Result.Summary
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.RenderScanPage(w, data); err != nil {
		logger.Error("Failed to render scan page", zap.String("job_id", jobID), zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
