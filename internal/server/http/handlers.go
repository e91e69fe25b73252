package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/repository"
	"github.com/trialsignal/pharmacovigilance-service/internal/temporal"
	"github.com/trialsignal/pharmacovigilance-service/internal/vigilance"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// criterionRequest is a single criterion in a rule create/update body.
type criterionRequest struct {
	FieldType string `json:"field_type" validate:"required"`
	Value     string `json:"value" validate:"required,max=500"`
	Operator  string `json:"operator,omitempty"`
	Group     int    `json:"group" validate:"min=0"`
	Order     int    `json:"order" validate:"min=0"`
}

// ruleRequest is the JSON request body for creating or updating a rule.
type ruleRequest struct {
	Name               string             `json:"name" validate:"required,max=255"`
	Description        string             `json:"description,omitempty" validate:"max=2000"`
	IsActive           *bool              `json:"is_active,omitempty"`
	Frequency          string             `json:"frequency,omitempty"`
	NotificationEmails []string           `json:"notification_emails,omitempty" validate:"max=20,dive,email"`
	Criteria           []criterionRequest `json:"criteria" validate:"required,min=1,max=50,dive"`
}

// toDomain converts the request into a domain rule. Semantic validation of
// field types, operators and frequency happens in the service layer.
func (req *ruleRequest) toDomain() *domain.SearchRule {
	rule := &domain.SearchRule{
		Name:               strings.TrimSpace(req.Name),
		Description:        req.Description,
		IsActive:           true,
		Frequency:          domain.Frequency(req.Frequency),
		NotificationEmails: req.NotificationEmails,
		Criteria:           make([]domain.Criterion, len(req.Criteria)),
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	for i, c := range req.Criteria {
		rule.Criteria[i] = domain.Criterion{
			FieldType: domain.FieldType(c.FieldType),
			Value:     c.Value,
			Operator:  domain.Operator(c.Operator),
			Group:     c.Group,
			Order:     c.Order,
		}
	}
	return rule
}

// createRule handles POST /api/v1/rules.
func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	rule := req.toDomain()
	if err := s.service.CreateRule(r.Context(), rule); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRuleResponse(rule))
}

// listRules handles GET /api/v1/rules.
func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	pageSize, offset, ok := parsePaginationParams(w, r)
	if !ok {
		return
	}

	filter := repository.RuleFilter{
		Limit:  pageSize,
		Offset: offset,
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "is_active must be true or false")
			return
		}
		filter.IsActive = &active
	}
	if v := r.URL.Query().Get("frequency"); v != "" {
		freq := domain.Frequency(v)
		if !freq.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown frequency: %s", v))
			return
		}
		filter.Frequency = freq
	}

	rules, total, err := s.service.ListRules(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := listRulesResponse{
		Rules:      make([]ruleResponse, len(rules)),
		TotalCount: total,
	}
	for i, rule := range rules {
		resp.Rules[i] = toRuleResponse(rule)
	}
	if int64(offset+len(rules)) < total {
		resp.NextPageToken = encodePageToken(offset + len(rules))
	}

	writeJSON(w, http.StatusOK, resp)
}

// getRule handles GET /api/v1/rules/{ruleID}.
func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := parseUUID(w, chi.URLParam(r, "ruleID"), "ruleID")
	if !ok {
		return
	}

	rule, err := s.service.GetRule(r.Context(), ruleID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

// updateRule handles PUT /api/v1/rules/{ruleID}. The criteria set is
// replaced wholesale.
func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := parseUUID(w, chi.URLParam(r, "ruleID"), "ruleID")
	if !ok {
		return
	}

	var req ruleRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	rule := req.toDomain()
	rule.ID = ruleID
	if err := s.service.UpdateRule(r.Context(), rule); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

// deleteRule handles DELETE /api/v1/rules/{ruleID}.
func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := parseUUID(w, chi.URLParam(r, "ruleID"), "ruleID")
	if !ok {
		return
	}

	if err := s.service.DeleteRule(r.Context(), ruleID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// runRule handles POST /api/v1/rules/{ruleID}/run. The scan runs
// synchronously and the summary is returned to the caller.
func (s *Server) runRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := parseUUID(w, chi.URLParam(r, "ruleID"), "ruleID")
	if !ok {
		return
	}

	summary, err := s.service.RunRule(r.Context(), ruleID, vigilance.TriggerManual)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// decodeAndValidate reads the request body into v and runs struct
// validation. It writes the error response itself and reports success.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage turns a validator error into a client-facing message
// naming the first offending field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", fieldName(fe))
		case "email":
			return fmt.Sprintf("%s must be a valid email address", fieldName(fe))
		case "min", "max":
			return fmt.Sprintf("%s is out of range", fieldName(fe))
		default:
			return fmt.Sprintf("%s is invalid", fieldName(fe))
		}
	}
	return "invalid request body"
}

func fieldName(fe validator.FieldError) string {
	// Namespace looks like "ruleRequest.Criteria[2].Value"; drop the
	// struct name prefix.
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// writeDomainError maps domain and workflow errors to HTTP responses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var critErr *domain.CriterionError
	if errors.As(err, &critErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":           critErr.Error(),
			"criterion_index": critErr.Index,
			"field":           critErr.Field,
		})
		return
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": valErr.Error(),
			"field": valErr.Field,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEvaluationInProgress):
		writeError(w, http.StatusConflict, "a scan for this rule is already running")
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	case errors.Is(err, temporal.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeError(w, http.StatusConflict, "workflow already running")
	case errors.Is(err, temporal.ErrConnectionFailed), errors.Is(err, temporal.ErrClientClosed):
		writeError(w, http.StatusServiceUnavailable, "workflow service unavailable")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a URL parameter as a UUID, writing a 400 on failure.
func parseUUID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: must be a UUID", field))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams reads page_size and page_token query parameters,
// writing a 400 on failure.
func parsePaginationParams(w http.ResponseWriter, r *http.Request) (pageSize, offset int, ok bool) {
	pageSize = defaultPageSize
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page_size must be a positive integer")
			return 0, 0, false
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		pageSize = n
	}

	if v := r.URL.Query().Get("page_token"); v != "" {
		n, err := decodePageToken(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page_token")
			return 0, 0, false
		}
		offset = n
	}

	return pageSize, offset, true
}

// encodePageToken encodes a result offset as an opaque page token.
func encodePageToken(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid offset in page token")
	}
	return n, nil
}
