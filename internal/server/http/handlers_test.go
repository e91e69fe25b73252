package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialsignal/pharmacovigilance-service/internal/database"
	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/repository"
	"github.com/trialsignal/pharmacovigilance-service/internal/vigilance"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockService struct {
	createRuleFn   func(ctx context.Context, rule *domain.SearchRule) error
	getRuleFn      func(ctx context.Context, id uuid.UUID) (*domain.SearchRule, error)
	updateRuleFn   func(ctx context.Context, rule *domain.SearchRule) error
	deleteRuleFn   func(ctx context.Context, id uuid.UUID) error
	listRulesFn    func(ctx context.Context, filter repository.RuleFilter) ([]*domain.SearchRule, int64, error)
	runRuleFn      func(ctx context.Context, ruleID uuid.UUID, trigger string) (*vigilance.ScanSummary, error)
	getResultFn    func(ctx context.Context, id uuid.UUID) (*domain.SearchResult, error)
	listResultsFn  func(ctx context.Context, filter repository.ResultFilter) ([]*domain.SearchResult, int64, error)
	resultCountsFn func(ctx context.Context, ruleID uuid.UUID) (map[domain.ReviewStatus]int64, error)
	reviewResultFn func(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, notes string) (*domain.SearchResult, error)
	getArticleFn   func(ctx context.Context, pmid string) (*domain.Article, error)
	listArticlesFn func(ctx context.Context, filter repository.ArticleFilter) ([]*domain.Article, int64, error)
	listTermsFn    func(ctx context.Context, category string) ([]*domain.AdverseEventTerm, error)
	createTermFn   func(ctx context.Context, term *domain.AdverseEventTerm) error
	deleteTermFn   func(ctx context.Context, id uuid.UUID) error
}

func (m *mockService) CreateRule(ctx context.Context, rule *domain.SearchRule) error {
	return m.createRuleFn(ctx, rule)
}

func (m *mockService) GetRule(ctx context.Context, id uuid.UUID) (*domain.SearchRule, error) {
	return m.getRuleFn(ctx, id)
}

func (m *mockService) UpdateRule(ctx context.Context, rule *domain.SearchRule) error {
	return m.updateRuleFn(ctx, rule)
}

func (m *mockService) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return m.deleteRuleFn(ctx, id)
}

func (m *mockService) ListRules(ctx context.Context, filter repository.RuleFilter) ([]*domain.SearchRule, int64, error) {
	return m.listRulesFn(ctx, filter)
}

func (m *mockService) RunRule(ctx context.Context, ruleID uuid.UUID, trigger string) (*vigilance.ScanSummary, error) {
	return m.runRuleFn(ctx, ruleID, trigger)
}

func (m *mockService) GetResult(ctx context.Context, id uuid.UUID) (*domain.SearchResult, error) {
	return m.getResultFn(ctx, id)
}

func (m *mockService) ListResults(ctx context.Context, filter repository.ResultFilter) ([]*domain.SearchResult, int64, error) {
	return m.listResultsFn(ctx, filter)
}

func (m *mockService) ResultCounts(ctx context.Context, ruleID uuid.UUID) (map[domain.ReviewStatus]int64, error) {
	return m.resultCountsFn(ctx, ruleID)
}

func (m *mockService) ReviewResult(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, notes string) (*domain.SearchResult, error) {
	return m.reviewResultFn(ctx, id, status, notes)
}

func (m *mockService) GetArticle(ctx context.Context, pmid string) (*domain.Article, error) {
	return m.getArticleFn(ctx, pmid)
}

func (m *mockService) ListArticles(ctx context.Context, filter repository.ArticleFilter) ([]*domain.Article, int64, error) {
	return m.listArticlesFn(ctx, filter)
}

func (m *mockService) ListTerms(ctx context.Context, category string) ([]*domain.AdverseEventTerm, error) {
	return m.listTermsFn(ctx, category)
}

func (m *mockService) CreateTerm(ctx context.Context, term *domain.AdverseEventTerm) error {
	return m.createTermFn(ctx, term)
}

func (m *mockService) DeleteTerm(ctx context.Context, id uuid.UUID) error {
	return m.deleteTermFn(ctx, id)
}

type mockScheduler struct {
	healthFn func(ctx context.Context) error
	signalFn func(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
	queryFn  func(ctx context.Context, workflowID, runID, queryType string, result interface{}, args ...interface{}) error
}

func (m *mockScheduler) Health(ctx context.Context) error {
	if m.healthFn == nil {
		return nil
	}
	return m.healthFn(ctx)
}

func (m *mockScheduler) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error {
	return m.signalFn(ctx, workflowID, runID, signalName, arg)
}

func (m *mockScheduler) QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, result interface{}, args ...interface{}) error {
	return m.queryFn(ctx, workflowID, runID, queryType, result, args...)
}

type mockHealthChecker struct {
	status database.HealthStatus
}

func (m *mockHealthChecker) Health(context.Context) database.HealthStatus {
	return m.status
}

func newTestServer(svc *mockService, scheduler SchedulerClient) *Server {
	return NewServer(
		Config{Address: "127.0.0.1:0"},
		svc,
		scheduler,
		&mockHealthChecker{status: database.HealthStatus{Status: "healthy"}},
		zerolog.Nop(),
	)
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func validRuleBody() map[string]interface{} {
	return map[string]interface{}{
		"name":      "Aspirin bleeding watch",
		"frequency": "daily",
		"criteria": []map[string]interface{}{
			{"field_type": "drug_name", "value": "aspirin", "group": 0, "order": 0},
			{"field_type": "adverse_event", "value": "bleeding", "operator": "AND", "group": 0, "order": 1},
		},
	}
}

// ---------------------------------------------------------------------------
// Rule handlers
// ---------------------------------------------------------------------------

func TestCreateRule(t *testing.T) {
	t.Run("creates a rule", func(t *testing.T) {
		svc := &mockService{
			createRuleFn: func(_ context.Context, rule *domain.SearchRule) error {
				rule.ID = uuid.New()
				rule.CreatedAt = time.Now().UTC()
				rule.UpdatedAt = rule.CreatedAt
				assert.Equal(t, "Aspirin bleeding watch", rule.Name)
				assert.True(t, rule.IsActive)
				require.Len(t, rule.Criteria, 2)
				assert.Equal(t, domain.FieldTypeDrugName, rule.Criteria[0].FieldType)
				return nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/rules", validRuleBody())
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp ruleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEqual(t, uuid.Nil, resp.ID)
		assert.Equal(t, "daily", resp.Frequency)
		assert.Len(t, resp.Criteria, 2)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		body := validRuleBody()
		delete(body, "name")
		rec := doRequest(s, http.MethodPost, "/api/v1/rules", body)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Name is required")
	})

	t.Run("rejects empty criteria", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		body := validRuleBody()
		body["criteria"] = []map[string]interface{}{}
		rec := doRequest(s, http.MethodPost, "/api/v1/rules", body)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/rules", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid JSON")
	})

	t.Run("maps criterion errors to 422", func(t *testing.T) {
		svc := &mockService{
			createRuleFn: func(context.Context, *domain.SearchRule) error {
				return &domain.CriterionError{Index: 1, Field: "field_type", Message: "unknown field type"}
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/rules", validRuleBody())
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, float64(1), resp["criterion_index"])
		assert.Equal(t, "field_type", resp["field"])
	})

	t.Run("rejects invalid notification email", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		body := validRuleBody()
		body["notification_emails"] = []string{"not-an-email"}
		rec := doRequest(s, http.MethodPost, "/api/v1/rules", body)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "email")
	})
}

func TestGetRule(t *testing.T) {
	t.Run("returns the rule", func(t *testing.T) {
		ruleID := uuid.New()
		svc := &mockService{
			getRuleFn: func(_ context.Context, id uuid.UUID) (*domain.SearchRule, error) {
				assert.Equal(t, ruleID, id)
				return &domain.SearchRule{ID: ruleID, Name: "watch", Frequency: domain.FrequencyDaily}, nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/rules/"+ruleID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ruleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, ruleID, resp.ID)
	})

	t.Run("returns 404 for unknown rule", func(t *testing.T) {
		svc := &mockService{
			getRuleFn: func(_ context.Context, id uuid.UUID) (*domain.SearchRule, error) {
				return nil, &domain.NotFoundError{Entity: "search rule", ID: id.String()}
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/rules/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects malformed UUID", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/rules/not-a-uuid", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "UUID")
	})
}

func TestListRules(t *testing.T) {
	t.Run("applies filters and pagination", func(t *testing.T) {
		svc := &mockService{
			listRulesFn: func(_ context.Context, filter repository.RuleFilter) ([]*domain.SearchRule, int64, error) {
				require.NotNil(t, filter.IsActive)
				assert.True(t, *filter.IsActive)
				assert.Equal(t, domain.FrequencyDaily, filter.Frequency)
				assert.Equal(t, 2, filter.Limit)
				return []*domain.SearchRule{
					{ID: uuid.New(), Name: "a"},
					{ID: uuid.New(), Name: "b"},
				}, 5, nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/rules?is_active=true&frequency=daily&page_size=2", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listRulesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Rules, 2)
		assert.Equal(t, int64(5), resp.TotalCount)
		assert.NotEmpty(t, resp.NextPageToken)
	})

	t.Run("follows page tokens", func(t *testing.T) {
		svc := &mockService{
			listRulesFn: func(_ context.Context, filter repository.RuleFilter) ([]*domain.SearchRule, int64, error) {
				assert.Equal(t, 2, filter.Offset)
				return []*domain.SearchRule{{ID: uuid.New()}}, 3, nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/rules?page_token="+encodePageToken(2), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listRulesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.NextPageToken, "last page has no next token")
	})

	t.Run("rejects unknown frequency", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/rules?frequency=hourly", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects bad page token", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/rules?page_token=%21%21", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateRule(t *testing.T) {
	ruleID := uuid.New()

	t.Run("replaces the rule", func(t *testing.T) {
		svc := &mockService{
			updateRuleFn: func(_ context.Context, rule *domain.SearchRule) error {
				assert.Equal(t, ruleID, rule.ID)
				return nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPut, "/api/v1/rules/"+ruleID.String(), validRuleBody())
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("returns 404 for unknown rule", func(t *testing.T) {
		svc := &mockService{
			updateRuleFn: func(context.Context, *domain.SearchRule) error {
				return domain.ErrNotFound
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPut, "/api/v1/rules/"+ruleID.String(), validRuleBody())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteRule(t *testing.T) {
	t.Run("deletes the rule", func(t *testing.T) {
		svc := &mockService{
			deleteRuleFn: func(context.Context, uuid.UUID) error { return nil },
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodDelete, "/api/v1/rules/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRunRule(t *testing.T) {
	ruleID := uuid.New()

	t.Run("runs a manual scan", func(t *testing.T) {
		svc := &mockService{
			runRuleFn: func(_ context.Context, id uuid.UUID, trigger string) (*vigilance.ScanSummary, error) {
				assert.Equal(t, ruleID, id)
				assert.Equal(t, vigilance.TriggerManual, trigger)
				return &vigilance.ScanSummary{
					RuleID:          ruleID,
					Trigger:         trigger,
					ArticlesScanned: 40,
					Matched:         2,
					Created:         2,
				}, nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/rules/"+ruleID.String()+"/run", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var summary vigilance.ScanSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		assert.Equal(t, 40, summary.ArticlesScanned)
		assert.Equal(t, 2, summary.Created)
	})

	t.Run("returns 409 when a scan is already running", func(t *testing.T) {
		svc := &mockService{
			runRuleFn: func(context.Context, uuid.UUID, string) (*vigilance.ScanSummary, error) {
				return nil, domain.ErrEvaluationInProgress
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/rules/"+ruleID.String()+"/run", nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already running")
	})

	t.Run("returns 503 when the store is down", func(t *testing.T) {
		svc := &mockService{
			runRuleFn: func(context.Context, uuid.UUID, string) (*vigilance.ScanSummary, error) {
				return nil, fmt.Errorf("list articles: %w", domain.ErrStoreUnavailable)
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/rules/"+ruleID.String()+"/run", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

// ---------------------------------------------------------------------------
// Result handlers
// ---------------------------------------------------------------------------

func TestListRuleResults(t *testing.T) {
	ruleID := uuid.New()

	t.Run("filters by rule and status", func(t *testing.T) {
		svc := &mockService{
			listResultsFn: func(_ context.Context, filter repository.ResultFilter) ([]*domain.SearchResult, int64, error) {
				assert.Equal(t, ruleID, filter.RuleID)
				assert.Equal(t, []domain.ReviewStatus{domain.ReviewStatusPending, domain.ReviewStatusFlagged}, filter.ReviewStatus)
				require.NotNil(t, filter.MinRelevance)
				assert.Equal(t, 0.5, *filter.MinRelevance)
				return []*domain.SearchResult{
					domain.NewSearchResult(ruleID, "12345678", []string{"aspirin"}, 0.5),
				}, 1, nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodGet,
			"/api/v1/rules/"+ruleID.String()+"/results?review_status=pending,flagged&min_relevance=0.5", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listResultsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "12345678", resp.Results[0].ArticlePMID)
		assert.Equal(t, "pending", resp.Results[0].ReviewStatus)
	})

	t.Run("rejects unknown review status", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/rules/"+ruleID.String()+"/results?review_status=archived", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects out of range min_relevance", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/rules/"+ruleID.String()+"/results?min_relevance=1.5", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetResultCounts(t *testing.T) {
	ruleID := uuid.New()
	svc := &mockService{
		resultCountsFn: func(_ context.Context, id uuid.UUID) (map[domain.ReviewStatus]int64, error) {
			assert.Equal(t, ruleID, id)
			return map[domain.ReviewStatus]int64{
				domain.ReviewStatusPending:  7,
				domain.ReviewStatusReviewed: 3,
			}, nil
		},
	}
	s := newTestServer(svc, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/rules/"+ruleID.String()+"/results/counts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resultCountsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Counts["pending"])
	assert.Equal(t, int64(3), resp.Counts["reviewed"])
	assert.Equal(t, int64(10), resp.Total)
}

func TestReviewResult(t *testing.T) {
	resultID := uuid.New()

	t.Run("records a review", func(t *testing.T) {
		svc := &mockService{
			reviewResultFn: func(_ context.Context, id uuid.UUID, status domain.ReviewStatus, notes string) (*domain.SearchResult, error) {
				assert.Equal(t, resultID, id)
				assert.Equal(t, domain.ReviewStatusFlagged, status)
				assert.Equal(t, "possible signal", notes)
				now := time.Now().UTC()
				return &domain.SearchResult{
					ID:           resultID,
					ReviewStatus: status,
					ReviewedAt:   &now,
				}, nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/results/"+resultID.String()+"/review",
			map[string]string{"status": "flagged", "notes": "possible signal"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp resultResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "flagged", resp.ReviewStatus)
		assert.NotNil(t, resp.ReviewedAt)
	})

	t.Run("rejects pending as a reviewer action", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/results/"+resultID.String()+"/review",
			map[string]string{"status": "pending"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "reviewed, flagged, dismissed")
	})

	t.Run("rejects missing status", func(t *testing.T) {
		s := newTestServer(&mockService{}, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/results/"+resultID.String()+"/review",
			map[string]string{"notes": "no status"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// ---------------------------------------------------------------------------
// Article and term handlers
// ---------------------------------------------------------------------------

func TestGetArticle(t *testing.T) {
	t.Run("returns the article", func(t *testing.T) {
		svc := &mockService{
			getArticleFn: func(_ context.Context, pmid string) (*domain.Article, error) {
				assert.Equal(t, "12345678", pmid)
				return &domain.Article{PMID: pmid, Title: "Aspirin and bleeding", Journal: "Lancet"}, nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/articles/12345678", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp articleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Aspirin and bleeding", resp.Title)
	})

	t.Run("returns 404 for unknown PMID", func(t *testing.T) {
		svc := &mockService{
			getArticleFn: func(_ context.Context, pmid string) (*domain.Article, error) {
				return nil, &domain.NotFoundError{Entity: "article", ID: pmid}
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/articles/99999999", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListArticles(t *testing.T) {
	svc := &mockService{
		listArticlesFn: func(_ context.Context, filter repository.ArticleFilter) ([]*domain.Article, int64, error) {
			assert.Equal(t, "aspirin", filter.Search)
			assert.Equal(t, "Lancet", filter.Journal)
			require.NotNil(t, filter.PublishedAfter)
			return []*domain.Article{{PMID: "1"}, {PMID: "2"}}, 2, nil
		},
	}
	s := newTestServer(svc, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/articles?search=aspirin&journal=Lancet&published_after=2026-01-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listArticlesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Articles, 2)
	assert.Empty(t, resp.NextPageToken)
}

func TestTermHandlers(t *testing.T) {
	t.Run("lists terms by category", func(t *testing.T) {
		svc := &mockService{
			listTermsFn: func(_ context.Context, category string) ([]*domain.AdverseEventTerm, error) {
				assert.Equal(t, "cardiovascular", category)
				return []*domain.AdverseEventTerm{
					{ID: uuid.New(), Term: "myocardial infarction", Category: category, IsCommon: true},
				}, nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodGet, "/api/v1/terms?category=cardiovascular", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listTermsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Terms, 1)
		assert.Equal(t, "myocardial infarction", resp.Terms[0].Term)
	})

	t.Run("creates a term", func(t *testing.T) {
		svc := &mockService{
			createTermFn: func(_ context.Context, term *domain.AdverseEventTerm) error {
				term.ID = uuid.New()
				assert.Equal(t, "hepatotoxicity", term.Term)
				assert.Equal(t, []string{"liver injury", "liver damage"}, term.Synonyms)
				return nil
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/terms", map[string]interface{}{
			"term":     "hepatotoxicity",
			"category": "hepatic",
			"synonyms": []string{"liver injury", "liver damage"},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("rejects duplicate terms", func(t *testing.T) {
		svc := &mockService{
			createTermFn: func(context.Context, *domain.AdverseEventTerm) error {
				return &domain.AlreadyExistsError{Entity: "adverse event term", ID: "hepatotoxicity"}
			},
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodPost, "/api/v1/terms", map[string]string{"term": "hepatotoxicity"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("deletes a term", func(t *testing.T) {
		svc := &mockService{
			deleteTermFn: func(context.Context, uuid.UUID) error { return nil },
		}
		s := newTestServer(svc, nil)

		rec := doRequest(s, http.MethodDelete, "/api/v1/terms/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func TestWriteDomainError_Unknown(t *testing.T) {
	svc := &mockService{
		getRuleFn: func(context.Context, uuid.UUID) (*domain.SearchRule, error) {
			return nil, errors.New("unexpected")
		},
	}
	s := newTestServer(svc, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/rules/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.NotContains(t, rec.Body.String(), "unexpected", "internal details must not leak")
}
