package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// ResultRepository handles search result persistence and review lifecycle.
// At most one result exists per (rule, article) pair; repeated evaluation
// refreshes match data without disturbing review state.
type ResultRepository interface {
	// Upsert records a rule-article match. If no result exists for the pair,
	// a new pending result is inserted and created is true. If one already
	// exists, its matched terms, relevance score, and updated timestamp are
	// refreshed while review status, reviewer notes, reviewed time, and the
	// original found time are preserved, and created is false.
	Upsert(ctx context.Context, result *domain.SearchResult) (created bool, err error)

	// Get retrieves a search result by its ID.
	// Returns domain.ErrNotFound if no matching result exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.SearchResult, error)

	// List retrieves search results matching the filter criteria.
	// Returns the matching results and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter ResultFilter) ([]*domain.SearchResult, int64, error)

	// UpdateReview applies a reviewer action: sets review status, reviewer
	// notes, and the reviewed timestamp. Transitions are allowed from any
	// state, including re-applying the current one.
	// Returns domain.ErrNotFound if no matching result exists.
	UpdateReview(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, notes string, reviewedAt time.Time) (*domain.SearchResult, error)

	// CountByStatus returns result counts per review status for a rule.
	CountByStatus(ctx context.Context, ruleID uuid.UUID) (map[domain.ReviewStatus]int64, error)
}

// ResultFilter specifies criteria for listing search results.
type ResultFilter struct {
	// RuleID filters by the producing rule (optional).
	RuleID uuid.UUID

	// ReviewStatus filters by one or more review statuses (optional).
	ReviewStatus []domain.ReviewStatus

	// FoundAfter filters to results first found after this timestamp (optional).
	FoundAfter *time.Time

	// MinRelevance filters to results at or above this relevance score (optional).
	MinRelevance *float64

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}
