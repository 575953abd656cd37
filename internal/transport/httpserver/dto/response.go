package dto

import (
	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidParams     = "INVALID_PARAMS"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidFilter     = "INVALID_FILTER"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidCursor     = "INVALID_CURSOR"
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// SyncResultResponse represents the response for a sync operation.
type SyncResultResponse struct {
	Provider string `json:"provider"`
	Products int    `json:"products"`
	Count    int    `json:"count"`
	Skipped  int    `json:"skipped"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// FromSyncResult converts a single service.SyncResult.
func FromSyncResult(r service.SyncResult) SyncResultResponse {
	resp := SyncResultResponse{
		Provider: r.Provider,
		Products: r.Products,
		Count:    r.Count,
		Skipped:  r.Skipped,
		Duration: r.Duration.String(),
	}
	if r.Error != nil {
		resp.Error = r.Error.Error()
	}
	return resp
}

// SyncResponse represents the response for sync all operation.
type SyncResponse struct {
	Results []SyncResultResponse `json:"results"`
	Summary SyncSummary          `json:"summary"`
}

// SyncSummary holds summary of sync operation.
type SyncSummary struct {
	TotalSynced   int `json:"total_synced"`
	TotalSkipped  int `json:"total_skipped"`
	ProvidersOK   int `json:"providers_ok"`
	ProvidersFail int `json:"providers_fail"`
}

// FromSyncResults converts service.SyncResult slice to SyncResponse.
func FromSyncResults(results []service.SyncResult) SyncResponse {
	resp := SyncResponse{
		Results: make([]SyncResultResponse, len(results)),
	}

	for i, r := range results {
		if r.Error != nil {
			resp.Summary.ProvidersFail++
		} else {
			resp.Summary.TotalSynced += r.Count
			resp.Summary.ProvidersOK++
		}
		resp.Summary.TotalSkipped += r.Skipped
		resp.Results[i] = FromSyncResult(r)
	}

	return resp
}

// ProvidersResponse lists the configured upstream providers.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}
