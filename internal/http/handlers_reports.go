package http

import (
	"net/http"

	"fintrack/internal/storage"
)

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Aggregator.ReportSummary(f))
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	trends := s.deps.Aggregator.Trends(f)
	trends.Monthly = nonNil(trends.Monthly)
	trends.Categories = nonNil(trends.Categories)
	writeJSON(w, http.StatusOK, trends)
}

// handleActivity lists the activity log recorded by the worker. The log
// lives in the SQL backends only.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.deps.Activity == nil {
		ErrorResponse(http.StatusServiceUnavailable, "activity log requires a sqlite or postgres backend").Write(w)
		return
	}
	items, err := s.deps.Activity.RecentActivity(r.Context(), storage.ClampLimit(parseLimit(r.URL.Query())))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}
