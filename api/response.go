package api

import (
	"encoding/json"
	"net/http"

	"github.com/eddielth/signal-monitor/logger"
)

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total   int   `json:"total,omitempty"`
	Skipped int   `json:"skipped,omitempty"`
	QueryMs int64 `json:"query_ms,omitempty"`
}

func write(w http.ResponseWriter, status int, resp apiResponse) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("failed to write response: %v", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	write(w, status, apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	write(w, http.StatusOK, apiResponse{Success: true, Data: data, Meta: m})
}
