// Handler for miscellaneous endpoints such as health check

package handler

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Health         string    `json:"health"`
	CatalogEntries int       `json:"catalog_entries"`
	CatalogGenes   int       `json:"catalog_genes"`
	Timestamp      time.Time `json:"timestamp"`
}

func (sctx *ScanContext) HealthCheck(w http.ResponseWriter, r *http.Request) {

	response := HealthResponse{
		Health:         "ok",
		CatalogEntries: sctx.Runner.Catalog.Len(),
		CatalogGenes:   len(sctx.Runner.Catalog.Genes()),
		Timestamp:      time.Now(),
	}

	writeJSON(w, http.StatusOK, response)
}
