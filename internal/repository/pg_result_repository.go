package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// Compile-time interface verification.
var _ ResultRepository = (*PgResultRepository)(nil)

// PgResultRepository is a PostgreSQL implementation of ResultRepository.
type PgResultRepository struct {
	db DBTX
}

// NewPgResultRepository creates a new PostgreSQL result repository.
func NewPgResultRepository(db DBTX) *PgResultRepository {
	return &PgResultRepository{db: db}
}

// Upsert records a rule-article match. The ON CONFLICT clause refreshes match
// data only; review_status, reviewer_notes, reviewed_at, and found_at stay as
// the reviewer left them.
func (r *PgResultRepository) Upsert(ctx context.Context, result *domain.SearchResult) (bool, error) {
	if result == nil {
		return false, domain.NewValidationError("result", "result cannot be nil")
	}
	if result.RuleID == uuid.Nil {
		return false, domain.NewValidationError("rule_id", "rule ID is required")
	}
	if result.ArticlePMID == "" {
		return false, domain.NewValidationError("article_pmid", "article PMID is required")
	}

	query := `
		INSERT INTO search_results (
			id, rule_id, article_pmid, matched_terms, relevance_score,
			review_status, reviewer_notes, reviewed_at, found_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (rule_id, article_pmid) DO UPDATE SET
			matched_terms = EXCLUDED.matched_terms,
			relevance_score = EXCLUDED.relevance_score,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted`

	var created bool
	err := r.db.QueryRow(ctx, query,
		result.ID, result.RuleID, result.ArticlePMID, result.MatchedTerms, result.RelevanceScore,
		result.ReviewStatus, result.ReviewerNotes, result.ReviewedAt, result.FoundAt, result.UpdatedAt,
	).Scan(&created)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return false, domain.NewNotFoundError("rule or article", result.RuleID.String())
		}
		return false, fmt.Errorf("failed to upsert result: %w", err)
	}

	return created, nil
}

// Get retrieves a search result by its ID.
func (r *PgResultRepository) Get(ctx context.Context, id uuid.UUID) (*domain.SearchResult, error) {
	query := `
		SELECT id, rule_id, article_pmid, matched_terms, relevance_score,
			review_status, reviewer_notes, reviewed_at, found_at, updated_at
		FROM search_results
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("result", id.String())
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	return result, nil
}

// List retrieves search results matching the filter criteria.
func (r *PgResultRepository) List(ctx context.Context, filter ResultFilter) ([]*domain.SearchResult, int64, error) {
	applyPaginationDefaults(&filter.Limit, &filter.Offset)

	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIndex := 1

	if filter.RuleID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("rule_id = $%d", argIndex))
		args = append(args, filter.RuleID)
		argIndex++
	}

	if len(filter.ReviewStatus) > 0 {
		placeholders := make([]string, len(filter.ReviewStatus))
		for i, s := range filter.ReviewStatus {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, s)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("review_status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.FoundAfter != nil {
		conditions = append(conditions, fmt.Sprintf("found_at > $%d", argIndex))
		args = append(args, *filter.FoundAfter)
		argIndex++
	}

	if filter.MinRelevance != nil {
		conditions = append(conditions, fmt.Sprintf("relevance_score >= $%d", argIndex))
		args = append(args, *filter.MinRelevance)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM search_results WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count results: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT id, rule_id, article_pmid, matched_terms, relevance_score,
			review_status, reviewer_notes, reviewed_at, found_at, updated_at
		FROM search_results
		WHERE %s
		ORDER BY found_at DESC, id
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.SearchResult, 0, filter.Limit)
	for rows.Next() {
		result, err := scanResultFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating results: %w", err)
	}

	return results, totalCount, nil
}

// UpdateReview applies a reviewer action and returns the updated result.
func (r *PgResultRepository) UpdateReview(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, notes string, reviewedAt time.Time) (*domain.SearchResult, error) {
	if !status.IsReviewerAction() {
		return nil, domain.NewValidationError("review_status", fmt.Sprintf("status %q is not a reviewer action", status))
	}

	query := `
		UPDATE search_results
		SET review_status = $1,
			reviewer_notes = $2,
			reviewed_at = $3,
			updated_at = $3
		WHERE id = $4
		RETURNING id, rule_id, article_pmid, matched_terms, relevance_score,
			review_status, reviewer_notes, reviewed_at, found_at, updated_at`

	row := r.db.QueryRow(ctx, query, status, notes, reviewedAt, id)
	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("result", id.String())
		}
		return nil, fmt.Errorf("failed to update review: %w", err)
	}

	return result, nil
}

// CountByStatus returns result counts per review status for a rule.
func (r *PgResultRepository) CountByStatus(ctx context.Context, ruleID uuid.UUID) (map[domain.ReviewStatus]int64, error) {
	query := `
		SELECT review_status, COUNT(*)
		FROM search_results
		WHERE rule_id = $1
		GROUP BY review_status`

	rows, err := r.db.Query(ctx, query, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count results by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ReviewStatus]int64)
	for rows.Next() {
		var status domain.ReviewStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

// scanResult scans a single row into a SearchResult.
func scanResult(row pgx.Row) (*domain.SearchResult, error) {
	var result domain.SearchResult
	err := row.Scan(
		&result.ID, &result.RuleID, &result.ArticlePMID, &result.MatchedTerms, &result.RelevanceScore,
		&result.ReviewStatus, &result.ReviewerNotes, &result.ReviewedAt, &result.FoundAt, &result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// scanResultFromRows scans the current row from pgx.Rows into a SearchResult.
func scanResultFromRows(rows pgx.Rows) (*domain.SearchResult, error) {
	var result domain.SearchResult
	err := rows.Scan(
		&result.ID, &result.RuleID, &result.ArticlePMID, &result.MatchedTerms, &result.RelevanceScore,
		&result.ReviewStatus, &result.ReviewerNotes, &result.ReviewedAt, &result.FoundAt, &result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
