package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/repository"
)

// reviewRequest is the JSON request body for reviewing a search result.
type reviewRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes,omitempty" validate:"max=5000"`
}

// listResults handles GET /api/v1/results.
func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.parseResultFilter(w, r, uuid.Nil)
	if !ok {
		return
	}
	s.writeResultList(w, r, filter)
}

// listRuleResults handles GET /api/v1/rules/{ruleID}/results.
func (s *Server) listRuleResults(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := parseUUID(w, chi.URLParam(r, "ruleID"), "ruleID")
	if !ok {
		return
	}

	filter, ok := s.parseResultFilter(w, r, ruleID)
	if !ok {
		return
	}
	s.writeResultList(w, r, filter)
}

func (s *Server) parseResultFilter(w http.ResponseWriter, r *http.Request, ruleID uuid.UUID) (repository.ResultFilter, bool) {
	pageSize, offset, ok := parsePaginationParams(w, r)
	if !ok {
		return repository.ResultFilter{}, false
	}

	filter := repository.ResultFilter{
		RuleID: ruleID,
		Limit:  pageSize,
		Offset: offset,
	}

	if v := r.URL.Query().Get("review_status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			status := domain.ReviewStatus(strings.TrimSpace(raw))
			if !status.IsValid() {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown review status: %s", raw))
				return repository.ResultFilter{}, false
			}
			filter.ReviewStatus = append(filter.ReviewStatus, status)
		}
	}
	if v := r.URL.Query().Get("found_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid found_after format: expected RFC3339")
			return repository.ResultFilter{}, false
		}
		filter.FoundAfter = &t
	}
	if v := r.URL.Query().Get("min_relevance"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil || score < 0 || score > 1 {
			writeError(w, http.StatusBadRequest, "min_relevance must be a number between 0 and 1")
			return repository.ResultFilter{}, false
		}
		filter.MinRelevance = &score
	}

	return filter, true
}

func (s *Server) writeResultList(w http.ResponseWriter, r *http.Request, filter repository.ResultFilter) {
	results, total, err := s.service.ListResults(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := listResultsResponse{
		Results:    make([]resultResponse, len(results)),
		TotalCount: total,
	}
	for i, result := range results {
		resp.Results[i] = toResultResponse(result)
	}
	if int64(filter.Offset+len(results)) < total {
		resp.NextPageToken = encodePageToken(filter.Offset + len(results))
	}

	writeJSON(w, http.StatusOK, resp)
}

// getResult handles GET /api/v1/results/{resultID}.
func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	resultID, ok := parseUUID(w, chi.URLParam(r, "resultID"), "resultID")
	if !ok {
		return
	}

	result, err := s.service.GetResult(r.Context(), resultID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(result))
}

// getResultCounts handles GET /api/v1/rules/{ruleID}/results/counts.
func (s *Server) getResultCounts(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := parseUUID(w, chi.URLParam(r, "ruleID"), "ruleID")
	if !ok {
		return
	}

	counts, err := s.service.ResultCounts(r.Context(), ruleID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := resultCountsResponse{
		RuleID: ruleID,
		Counts: make(map[string]int64, len(counts)),
	}
	for status, count := range counts {
		resp.Counts[string(status)] = count
		resp.Total += count
	}

	writeJSON(w, http.StatusOK, resp)
}

// reviewResult handles POST /api/v1/results/{resultID}/review.
func (s *Server) reviewResult(w http.ResponseWriter, r *http.Request) {
	resultID, ok := parseUUID(w, chi.URLParam(r, "resultID"), "resultID")
	if !ok {
		return
	}

	var req reviewRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	status := domain.ReviewStatus(req.Status)
	if !status.IsReviewerAction() {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("status must be one of reviewed, flagged, dismissed; got %q", req.Status))
		return
	}

	result, err := s.service.ReviewResult(r.Context(), resultID, status, req.Notes)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(result))
}
