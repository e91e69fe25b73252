package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// termRequest is the JSON request body for creating an adverse event term.
type termRequest struct {
	Term        string   `json:"term" validate:"required,max=255"`
	Category    string   `json:"category,omitempty" validate:"max=100"`
	Description string   `json:"description,omitempty" validate:"max=2000"`
	Synonyms    []string `json:"synonyms,omitempty" validate:"max=50,dive,required,max=255"`
	IsCommon    bool     `json:"is_common,omitempty"`
}

// listTerms handles GET /api/v1/terms.
func (s *Server) listTerms(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	terms, err := s.service.ListTerms(r.Context(), category)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := listTermsResponse{Terms: make([]termResponse, len(terms))}
	for i, term := range terms {
		resp.Terms[i] = toTermResponse(term)
	}

	writeJSON(w, http.StatusOK, resp)
}

// createTerm handles POST /api/v1/terms.
func (s *Server) createTerm(w http.ResponseWriter, r *http.Request) {
	var req termRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	term := &domain.AdverseEventTerm{
		Term:        strings.TrimSpace(req.Term),
		Category:    req.Category,
		Description: req.Description,
		Synonyms:    req.Synonyms,
		IsCommon:    req.IsCommon,
	}
	if err := s.service.CreateTerm(r.Context(), term); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTermResponse(term))
}

// deleteTerm handles DELETE /api/v1/terms/{termID}.
func (s *Server) deleteTerm(w http.ResponseWriter, r *http.Request) {
	termID, ok := parseUUID(w, chi.URLParam(r, "termID"), "termID")
	if !ok {
		return
	}

	if err := s.service.DeleteTerm(r.Context(), termID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
