package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is the review lifecycle state of a search result.
type ReviewStatus string

// Review statuses. Pending is the initial state; the others are reached only
// through explicit reviewer actions and can be re-entered freely.
const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusReviewed  ReviewStatus = "reviewed"
	ReviewStatusFlagged   ReviewStatus = "flagged"
	ReviewStatusDismissed ReviewStatus = "dismissed"
)

// IsValid returns true if the status is one of the known values.
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusReviewed, ReviewStatusFlagged, ReviewStatusDismissed:
		return true
	}
	return false
}

// IsReviewerAction returns true if the status can be set by a reviewer.
// Pending is assigned only at creation time.
func (s ReviewStatus) IsReviewerAction() bool {
	switch s {
	case ReviewStatusReviewed, ReviewStatusFlagged, ReviewStatusDismissed:
		return true
	}
	return false
}

// SearchResult records that a rule matched an article. At most one result
// exists per (rule, article) pair; re-evaluation refreshes matched terms and
// relevance score but never touches review state. Results are retained for
// audit and are never deleted automatically.
type SearchResult struct {
	// ID is the primary key for this result.
	ID uuid.UUID

	// RuleID references the search rule that produced this result.
	RuleID uuid.UUID

	// ArticlePMID references the matched article.
	ArticlePMID string

	// MatchedTerms lists the normalized criterion values that contributed
	// to the match.
	MatchedTerms []string

	// RelevanceScore is distinct matched terms over total configured
	// criteria, clamped to [0, 1].
	RelevanceScore float64

	// ReviewStatus is the current review lifecycle state.
	ReviewStatus ReviewStatus

	// ReviewerNotes holds free-form reviewer commentary.
	ReviewerNotes string

	// ReviewedAt records the most recent reviewer action, nil before the
	// first one.
	ReviewedAt *time.Time

	// FoundAt records when the result was first created.
	FoundAt time.Time

	UpdatedAt time.Time
}

// NewSearchResult creates a pending result for a rule-article match.
func NewSearchResult(ruleID uuid.UUID, pmid string, matchedTerms []string, score float64) *SearchResult {
	now := time.Now().UTC()
	return &SearchResult{
		ID:             uuid.New(),
		RuleID:         ruleID,
		ArticlePMID:    pmid,
		MatchedTerms:   matchedTerms,
		RelevanceScore: score,
		ReviewStatus:   ReviewStatusPending,
		FoundAt:        now,
		UpdatedAt:      now,
	}
}

// RelevanceScore computes the score for matchedCount distinct matched terms
// out of totalCriteria configured criteria. Monotonic in matchedCount and
// clamped to [0, 1]. A rule with zero criteria scores zero.
func RelevanceScore(matchedCount, totalCriteria int) float64 {
	if totalCriteria <= 0 || matchedCount <= 0 {
		return 0
	}
	score := float64(matchedCount) / float64(totalCriteria)
	if score > 1 {
		return 1
	}
	return score
}
