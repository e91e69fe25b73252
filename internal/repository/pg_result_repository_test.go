package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

func newTestResult() *domain.SearchResult {
	return domain.NewSearchResult(uuid.New(), "12345678", []string{"aspirin", "bleeding"}, 1.0)
}

func resultColumns() []string {
	return []string{
		"id", "rule_id", "article_pmid", "matched_terms", "relevance_score",
		"review_status", "reviewer_notes", "reviewed_at", "found_at", "updated_at",
	}
}

func TestPgResultRepository_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("creates new result", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		result := newTestResult()

		mock.ExpectQuery("INSERT INTO search_results").
			WithArgs(
				result.ID, result.RuleID, result.ArticlePMID, result.MatchedTerms, result.RelevanceScore,
				result.ReviewStatus, result.ReviewerNotes, result.ReviewedAt, result.FoundAt, result.UpdatedAt,
			).
			WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(true))

		created, err := repo.Upsert(ctx, result)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refreshes existing result", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		result := newTestResult()

		mock.ExpectQuery("INSERT INTO search_results").
			WithArgs(
				result.ID, result.RuleID, result.ArticlePMID, result.MatchedTerms, result.RelevanceScore,
				result.ReviewStatus, result.ReviewerNotes, result.ReviewedAt, result.FoundAt, result.UpdatedAt,
			).
			WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(false))

		created, err := repo.Upsert(ctx, result)
		require.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for nil result", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		_, err = repo.Upsert(ctx, nil)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})

	t.Run("returns validation error for missing rule ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		result := newTestResult()
		result.RuleID = uuid.Nil

		_, err = repo.Upsert(ctx, result)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "rule_id", validationErr.Field)
	})

	t.Run("returns not found for dangling references", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		result := newTestResult()

		pgErr := &pgconn.PgError{Code: "23503"}
		mock.ExpectQuery("INSERT INTO search_results").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnError(pgErr)

		_, err = repo.Upsert(ctx, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgResultRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns result when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		result := newTestResult()

		mock.ExpectQuery("SELECT .* FROM search_results").
			WithArgs(result.ID).
			WillReturnRows(pgxmock.NewRows(resultColumns()).AddRow(
				result.ID, result.RuleID, result.ArticlePMID, result.MatchedTerms, result.RelevanceScore,
				result.ReviewStatus, result.ReviewerNotes, result.ReviewedAt, result.FoundAt, result.UpdatedAt,
			))

		got, err := repo.Get(ctx, result.ID)
		require.NoError(t, err)
		assert.Equal(t, result.ID, got.ID)
		assert.Equal(t, result.ArticlePMID, got.ArticlePMID)
		assert.Equal(t, domain.ReviewStatusPending, got.ReviewStatus)
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT .* FROM search_results").
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(resultColumns()))

		got, err := repo.Get(ctx, id)
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgResultRepository_UpdateReview(t *testing.T) {
	ctx := context.Background()

	t.Run("applies reviewer action", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		result := newTestResult()
		reviewedAt := time.Now().UTC()

		mock.ExpectQuery("UPDATE search_results").
			WithArgs(domain.ReviewStatusFlagged, "needs escalation", reviewedAt, result.ID).
			WillReturnRows(pgxmock.NewRows(resultColumns()).AddRow(
				result.ID, result.RuleID, result.ArticlePMID, result.MatchedTerms, result.RelevanceScore,
				domain.ReviewStatusFlagged, "needs escalation", &reviewedAt, result.FoundAt, reviewedAt,
			))

		got, err := repo.UpdateReview(ctx, result.ID, domain.ReviewStatusFlagged, "needs escalation", reviewedAt)
		require.NoError(t, err)
		assert.Equal(t, domain.ReviewStatusFlagged, got.ReviewStatus)
		assert.Equal(t, "needs escalation", got.ReviewerNotes)
		require.NotNil(t, got.ReviewedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-reviewer status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)

		_, err = repo.UpdateReview(ctx, uuid.New(), domain.ReviewStatusPending, "", time.Now().UTC())

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "review_status", validationErr.Field)
	})

	t.Run("returns not found for missing result", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)

		mock.ExpectQuery("UPDATE search_results").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(resultColumns()))

		_, err = repo.UpdateReview(ctx, uuid.New(), domain.ReviewStatusReviewed, "", time.Now().UTC())
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgResultRepository_List(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by rule and status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		result := newTestResult()

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM search_results").
			WithArgs(result.RuleID, domain.ReviewStatusPending).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

		mock.ExpectQuery("SELECT .* FROM search_results").
			WithArgs(result.RuleID, domain.ReviewStatusPending, 100, 0).
			WillReturnRows(pgxmock.NewRows(resultColumns()).AddRow(
				result.ID, result.RuleID, result.ArticlePMID, result.MatchedTerms, result.RelevanceScore,
				result.ReviewStatus, result.ReviewerNotes, result.ReviewedAt, result.FoundAt, result.UpdatedAt,
			))

		results, total, err := repo.List(ctx, ResultFilter{
			RuleID:       result.RuleID,
			ReviewStatus: []domain.ReviewStatus{domain.ReviewStatusPending},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, results, 1)
		assert.Equal(t, result.ID, results[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgResultRepository_CountByStatus(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgResultRepository(mock)
	ruleID := uuid.New()

	mock.ExpectQuery("SELECT review_status, COUNT\\(\\*\\)").
		WithArgs(ruleID).
		WillReturnRows(pgxmock.NewRows([]string{"review_status", "count"}).
			AddRow(domain.ReviewStatusPending, int64(4)).
			AddRow(domain.ReviewStatusFlagged, int64(1)))

	counts, err := repo.CountByStatus(ctx, ruleID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[domain.ReviewStatusPending])
	assert.Equal(t, int64(1), counts[domain.ReviewStatusFlagged])
}
