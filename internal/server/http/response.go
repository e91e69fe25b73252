package httpserver

import (
	"time"

	"github.com/google/uuid"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// criterionResponse is the JSON representation of a rule criterion.
type criterionResponse struct {
	ID        uuid.UUID `json:"id"`
	FieldType string    `json:"field_type"`
	Value     string    `json:"value"`
	Operator  string    `json:"operator"`
	Group     int       `json:"group"`
	Order     int       `json:"order"`
}

// ruleResponse is the JSON representation of a search rule.
type ruleResponse struct {
	ID                 uuid.UUID           `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	IsActive           bool                `json:"is_active"`
	Frequency          string              `json:"frequency"`
	LastRun            *time.Time          `json:"last_run,omitempty"`
	NotificationEmails []string            `json:"notification_emails,omitempty"`
	Criteria           []criterionResponse `json:"criteria"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func toRuleResponse(rule *domain.SearchRule) ruleResponse {
	criteria := make([]criterionResponse, len(rule.Criteria))
	for i, c := range rule.Criteria {
		criteria[i] = criterionResponse{
			ID:        c.ID,
			FieldType: string(c.FieldType),
			Value:     c.Value,
			Operator:  string(c.Operator),
			Group:     c.Group,
			Order:     c.Order,
		}
	}
	return ruleResponse{
		ID:                 rule.ID,
		Name:               rule.Name,
		Description:        rule.Description,
		IsActive:           rule.IsActive,
		Frequency:          string(rule.Frequency),
		LastRun:            rule.LastRun,
		NotificationEmails: rule.NotificationEmails,
		Criteria:           criteria,
		CreatedAt:          rule.CreatedAt,
		UpdatedAt:          rule.UpdatedAt,
	}
}

// listRulesResponse is the JSON response for listing rules.
type listRulesResponse struct {
	Rules         []ruleResponse `json:"rules"`
	TotalCount    int64          `json:"total_count"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// resultResponse is the JSON representation of a search result.
type resultResponse struct {
	ID             uuid.UUID  `json:"id"`
	RuleID         uuid.UUID  `json:"rule_id"`
	ArticlePMID    string     `json:"article_pmid"`
	MatchedTerms   []string   `json:"matched_terms"`
	RelevanceScore float64    `json:"relevance_score"`
	ReviewStatus   string     `json:"review_status"`
	ReviewerNotes  string     `json:"reviewer_notes,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	FoundAt        time.Time  `json:"found_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toResultResponse(result *domain.SearchResult) resultResponse {
	return resultResponse{
		ID:             result.ID,
		RuleID:         result.RuleID,
		ArticlePMID:    result.ArticlePMID,
		MatchedTerms:   result.MatchedTerms,
		RelevanceScore: result.RelevanceScore,
		ReviewStatus:   string(result.ReviewStatus),
		ReviewerNotes:  result.ReviewerNotes,
		ReviewedAt:     result.ReviewedAt,
		FoundAt:        result.FoundAt,
		UpdatedAt:      result.UpdatedAt,
	}
}

// listResultsResponse is the JSON response for listing results.
type listResultsResponse struct {
	Results       []resultResponse `json:"results"`
	TotalCount    int64            `json:"total_count"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

// resultCountsResponse is the JSON response for per-status result counts.
type resultCountsResponse struct {
	RuleID uuid.UUID        `json:"rule_id"`
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

// articleResponse is the JSON representation of a stored article.
type articleResponse struct {
	PMID            string     `json:"pmid"`
	Title           string     `json:"title"`
	Abstract        string     `json:"abstract,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Authors         []string   `json:"authors,omitempty"`
	Keywords        []string   `json:"keywords,omitempty"`
	MeshTerms       []string   `json:"mesh_terms,omitempty"`
	DOI             string     `json:"doi,omitempty"`
	Journal         string     `json:"journal,omitempty"`
	ArticleURL      string     `json:"article_url,omitempty"`
}

func toArticleResponse(article *domain.Article) articleResponse {
	return articleResponse{
		PMID:            article.PMID,
		Title:           article.Title,
		Abstract:        article.Abstract,
		PublicationDate: article.PublicationDate,
		Authors:         article.Authors,
		Keywords:        article.Keywords,
		MeshTerms:       article.MeshTerms,
		DOI:             article.DOI,
		Journal:         article.Journal,
		ArticleURL:      article.ArticleURL,
	}
}

// listArticlesResponse is the JSON response for listing articles.
type listArticlesResponse struct {
	Articles      []articleResponse `json:"articles"`
	TotalCount    int64             `json:"total_count"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

// termResponse is the JSON representation of an adverse event term.
type termResponse struct {
	ID          uuid.UUID `json:"id"`
	Term        string    `json:"term"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Synonyms    []string  `json:"synonyms,omitempty"`
	IsCommon    bool      `json:"is_common"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTermResponse(term *domain.AdverseEventTerm) termResponse {
	return termResponse{
		ID:          term.ID,
		Term:        term.Term,
		Category:    term.Category,
		Description: term.Description,
		Synonyms:    term.Synonyms,
		IsCommon:    term.IsCommon,
		CreatedAt:   term.CreatedAt,
	}
}

// listTermsResponse is the JSON response for listing adverse event terms.
type listTermsResponse struct {
	Terms []termResponse `json:"terms"`
}

// schedulerStateResponse mirrors the scheduler workflow's query result. The
// field names must stay aligned with workflows.SchedulerState, which crosses
// the Temporal boundary as JSON.
type schedulerStateResponse struct {
	Passes         int       `json:"passes"`
	ScansStarted   int       `json:"scans_started"`
	ScansFailed    int       `json:"scans_failed"`
	ArticlesSynced int       `json:"articles_synced"`
	LastPassAt     time.Time `json:"last_pass_at"`
}
