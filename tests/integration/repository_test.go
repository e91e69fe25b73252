//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/repository"
)

func newTestRule(name string, frequency domain.Frequency) *domain.SearchRule {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.SearchRule{
		ID:          uuid.New(),
		Name:        name,
		Description: "integration test rule",
		IsActive:    true,
		Frequency:   frequency,
		Criteria: []domain.Criterion{
			{FieldType: domain.FieldTypeDrugName, Value: "aspirin", Group: 0, Order: 0},
			{FieldType: domain.FieldTypeKeyword, Value: "bleeding", Operator: domain.OperatorAnd, Group: 0, Order: 1},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestArticle(pmid, title string) *domain.Article {
	published := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Article{
		PMID:            pmid,
		Title:           title,
		Abstract:        "A study of aspirin and gastrointestinal bleeding.",
		PublicationDate: &published,
		Authors:         []string{"Smith J", "Jones K"},
		Keywords:        []string{"aspirin", "hemorrhage"},
		Journal:         "Test Journal",
	}
}

func TestPgRuleRepository_Integration(t *testing.T) {
	cleanTables(t, "search_rules")
	repo := repository.NewPgRuleRepository(testPool)
	ctx := context.Background()

	t.Run("Create and Get roundtrip", func(t *testing.T) {
		rule := newTestRule("aspirin bleeding watch", domain.FrequencyDaily)
		require.NoError(t, repo.Create(ctx, rule))

		got, err := repo.Get(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, rule.Name, got.Name)
		assert.Equal(t, domain.FrequencyDaily, got.Frequency)
		require.Len(t, got.Criteria, 2)
		assert.Equal(t, domain.FieldTypeDrugName, got.Criteria[0].FieldType)
		assert.Equal(t, "aspirin", got.Criteria[0].Value)
		assert.Equal(t, domain.OperatorAnd, got.Criteria[1].Operator)
	})

	t.Run("Create duplicate returns already exists", func(t *testing.T) {
		rule := newTestRule("duplicate rule", domain.FrequencyDaily)
		require.NoError(t, repo.Create(ctx, rule))

		err := repo.Create(ctx, rule)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("Update replaces the criterion set", func(t *testing.T) {
		rule := newTestRule("criteria replacement", domain.FrequencyWeekly)
		require.NoError(t, repo.Create(ctx, rule))

		rule.Name = "renamed"
		rule.Criteria = []domain.Criterion{
			{FieldType: domain.FieldTypeAdverseEvent, Value: "hepatotoxicity", Group: 0, Order: 0},
		}
		require.NoError(t, repo.Update(ctx, rule))

		got, err := repo.Get(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		require.Len(t, got.Criteria, 1)
		assert.Equal(t, domain.FieldTypeAdverseEvent, got.Criteria[0].FieldType)
	})

	t.Run("UpdateLastRun sets last_run only", func(t *testing.T) {
		rule := newTestRule("last run tracking", domain.FrequencyDaily)
		require.NoError(t, repo.Create(ctx, rule))

		ranAt := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, repo.UpdateLastRun(ctx, rule.ID, ranAt))

		got, err := repo.Get(ctx, rule.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastRun)
		assert.Equal(t, ranAt, got.LastRun.UTC())
	})

	t.Run("ListDue skips manual and inactive rules", func(t *testing.T) {
		cleanTables(t, "search_rules")

		due := newTestRule("due daily rule", domain.FrequencyDaily)
		require.NoError(t, repo.Create(ctx, due))

		manual := newTestRule("manual rule", domain.FrequencyManual)
		require.NoError(t, repo.Create(ctx, manual))

		inactive := newTestRule("inactive rule", domain.FrequencyDaily)
		inactive.IsActive = false
		require.NoError(t, repo.Create(ctx, inactive))

		rules, err := repo.ListDue(ctx, time.Now().UTC())
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, due.ID, rules[0].ID)
	})

	t.Run("List filters by active flag", func(t *testing.T) {
		cleanTables(t, "search_rules")

		active := newTestRule("active rule", domain.FrequencyDaily)
		require.NoError(t, repo.Create(ctx, active))
		inactive := newTestRule("inactive rule", domain.FrequencyDaily)
		inactive.IsActive = false
		require.NoError(t, repo.Create(ctx, inactive))

		isActive := true
		rules, total, err := repo.List(ctx, repository.RuleFilter{IsActive: &isActive})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, rules, 1)
		assert.Equal(t, active.ID, rules[0].ID)
	})

	t.Run("Delete removes rule and criteria", func(t *testing.T) {
		rule := newTestRule("doomed rule", domain.FrequencyDaily)
		require.NoError(t, repo.Create(ctx, rule))

		require.NoError(t, repo.Delete(ctx, rule.ID))

		_, err := repo.Get(ctx, rule.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgArticleRepository_Integration(t *testing.T) {
	cleanTables(t, "articles")
	repo := repository.NewPgArticleRepository(testPool)
	ctx := context.Background()

	t.Run("UpsertBatch counts only new rows", func(t *testing.T) {
		batch := []*domain.Article{
			newTestArticle("10000001", "first"),
			newTestArticle("10000002", "second"),
		}
		created, err := repo.UpsertBatch(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 2, created)

		// Re-upserting the same PMIDs refreshes metadata without new rows.
		batch[0].Title = "first, revised"
		created, err = repo.UpsertBatch(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 0, created)

		got, err := repo.Get(ctx, "10000001")
		require.NoError(t, err)
		assert.Equal(t, "first, revised", got.Title)
		assert.Equal(t, []string{"Smith J", "Jones K"}, got.Authors)
	})

	t.Run("ListPage walks the store in PMID order", func(t *testing.T) {
		cleanTables(t, "articles")
		for _, pmid := range []string{"20000003", "20000001", "20000002"} {
			require.NoError(t, repo.Upsert(ctx, newTestArticle(pmid, "article "+pmid)))
		}

		page, err := repo.ListPage(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "20000001", page[0].PMID)
		assert.Equal(t, "20000002", page[1].PMID)

		page, err = repo.ListPage(ctx, page[1].PMID, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "20000003", page[0].PMID)
	})
}

func TestPgResultRepository_Integration(t *testing.T) {
	cleanTables(t, "search_rules", "articles", "search_results")
	ctx := context.Background()

	ruleRepo := repository.NewPgRuleRepository(testPool)
	articleRepo := repository.NewPgArticleRepository(testPool)
	repo := repository.NewPgResultRepository(testPool)

	rule := newTestRule("result owner", domain.FrequencyDaily)
	require.NoError(t, ruleRepo.Create(ctx, rule))
	require.NoError(t, articleRepo.Upsert(ctx, newTestArticle("30000001", "matched article")))

	t.Run("Upsert creates then refreshes", func(t *testing.T) {
		result := domain.NewSearchResult(rule.ID, "30000001", []string{"aspirin"}, 0.5)
		created, err := repo.Upsert(ctx, result)
		require.NoError(t, err)
		assert.True(t, created)

		// Review the result, then refresh it with new match data.
		reviewed, err := repo.UpdateReview(ctx, result.ID, domain.ReviewStatusFlagged, "needs follow-up", time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, domain.ReviewStatusFlagged, reviewed.ReviewStatus)

		refresh := domain.NewSearchResult(rule.ID, "30000001", []string{"aspirin", "bleeding"}, 1.0)
		created, err = repo.Upsert(ctx, refresh)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := repo.Get(ctx, result.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"aspirin", "bleeding"}, got.MatchedTerms)
		assert.Equal(t, 1.0, got.RelevanceScore)
		assert.Equal(t, domain.ReviewStatusFlagged, got.ReviewStatus, "refresh must not touch review state")
		assert.Equal(t, "needs follow-up", got.ReviewerNotes)
		assert.NotNil(t, got.ReviewedAt)
	})

	t.Run("CountByStatus groups results", func(t *testing.T) {
		counts, err := repo.CountByStatus(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[domain.ReviewStatusFlagged])
	})

	t.Run("List filters by review status", func(t *testing.T) {
		results, total, err := repo.List(ctx, repository.ResultFilter{
			RuleID:       rule.ID,
			ReviewStatus: []domain.ReviewStatus{domain.ReviewStatusFlagged},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, results, 1)
		assert.Equal(t, "30000001", results[0].ArticlePMID)
	})
}

func TestPgTermRepository_Integration(t *testing.T) {
	cleanTables(t, "adverse_event_terms")
	repo := repository.NewPgTermRepository(testPool)
	ctx := context.Background()

	term := &domain.AdverseEventTerm{
		ID:       uuid.New(),
		Term:     "Hepatotoxicity",
		Category: "hepatic",
		Synonyms: []string{"liver injury", "liver damage"},
		IsCommon: true,
	}
	require.NoError(t, repo.Create(ctx, term))

	t.Run("GetByTerm is case-insensitive", func(t *testing.T) {
		got, err := repo.GetByTerm(ctx, "hepatotoxicity")
		require.NoError(t, err)
		assert.Equal(t, term.ID, got.ID)
		assert.Equal(t, []string{"liver injury", "liver damage"}, got.Synonyms)
	})

	t.Run("Create duplicate canonical term conflicts", func(t *testing.T) {
		dup := &domain.AdverseEventTerm{ID: uuid.New(), Term: "Hepatotoxicity"}
		err := repo.Create(ctx, dup)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("List filters by category", func(t *testing.T) {
		other := &domain.AdverseEventTerm{ID: uuid.New(), Term: "tachycardia", Category: "cardiovascular"}
		require.NoError(t, repo.Create(ctx, other))

		terms, err := repo.List(ctx, "hepatic")
		require.NoError(t, err)
		require.Len(t, terms, 1)
		assert.Equal(t, "Hepatotoxicity", terms[0].Term)
	})
}
