package activities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/pubmed"
)

// ---------------------------------------------------------------------------
// Mocks: ArticleSource and ArticleIngestor
// ---------------------------------------------------------------------------

type mockArticleSource struct {
	articles []*domain.Article
	err      error
	queries  []string
	opts     []pubmed.SearchOptions
}

func (m *mockArticleSource) Search(_ context.Context, query string, opts pubmed.SearchOptions) ([]*domain.Article, error) {
	m.queries = append(m.queries, query)
	m.opts = append(m.opts, opts)
	if m.err != nil {
		return nil, m.err
	}
	return m.articles, nil
}

type mockArticleIngestor struct {
	stored  int
	err     error
	sources []string
	batches [][]*domain.Article
}

func (m *mockArticleIngestor) IngestArticles(_ context.Context, source string, articles []*domain.Article) (int, error) {
	m.sources = append(m.sources, source)
	m.batches = append(m.batches, articles)
	if m.err != nil {
		return 0, m.err
	}
	return m.stored, nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSyncActivities_SyncArticles(t *testing.T) {
	t.Run("fetches and stores articles", func(t *testing.T) {
		suite := &testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()

		source := &mockArticleSource{articles: []*domain.Article{
			{PMID: "12345678", Title: "Aspirin and bleeding"},
			{PMID: "87654321", Title: "A second study"},
		}}
		ingestor := &mockArticleIngestor{stored: 2}
		act := NewSyncActivities(source, ingestor, true)
		env.RegisterActivity(act.SyncArticles)

		from := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
		val, err := env.ExecuteActivity(act.SyncArticles, SyncArticlesInput{
			Query:      "adverse drug reaction",
			From:       &from,
			MaxResults: 200,
		})
		require.NoError(t, err)

		var out SyncArticlesOutput
		require.NoError(t, val.Get(&out))
		assert.Equal(t, 2, out.Fetched)
		assert.Equal(t, 2, out.Stored)
		assert.False(t, out.Skipped)

		require.Len(t, source.queries, 1)
		assert.Equal(t, "adverse drug reaction", source.queries[0])
		require.NotNil(t, source.opts[0].From)
		assert.Equal(t, from, *source.opts[0].From)
		assert.Equal(t, 200, source.opts[0].MaxResults)

		require.Len(t, ingestor.sources, 1)
		assert.Equal(t, "pubmed", ingestor.sources[0])
		assert.Len(t, ingestor.batches[0], 2)
	})

	t.Run("skips when disabled", func(t *testing.T) {
		suite := &testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()

		source := &mockArticleSource{}
		act := NewSyncActivities(source, &mockArticleIngestor{}, false)
		env.RegisterActivity(act.SyncArticles)

		val, err := env.ExecuteActivity(act.SyncArticles, SyncArticlesInput{Query: "anything"})
		require.NoError(t, err)

		var out SyncArticlesOutput
		require.NoError(t, val.Get(&out))
		assert.True(t, out.Skipped)
		assert.Empty(t, source.queries, "source must not be called when disabled")
	})

	t.Run("skips on empty query", func(t *testing.T) {
		suite := &testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()

		source := &mockArticleSource{}
		act := NewSyncActivities(source, &mockArticleIngestor{}, true)
		env.RegisterActivity(act.SyncArticles)

		val, err := env.ExecuteActivity(act.SyncArticles, SyncArticlesInput{})
		require.NoError(t, err)

		var out SyncArticlesOutput
		require.NoError(t, val.Get(&out))
		assert.True(t, out.Skipped)
	})

	t.Run("empty result skips ingestion", func(t *testing.T) {
		suite := &testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()

		ingestor := &mockArticleIngestor{}
		act := NewSyncActivities(&mockArticleSource{}, ingestor, true)
		env.RegisterActivity(act.SyncArticles)

		val, err := env.ExecuteActivity(act.SyncArticles, SyncArticlesInput{Query: "zzyzxdrug"})
		require.NoError(t, err)

		var out SyncArticlesOutput
		require.NoError(t, val.Get(&out))
		assert.Zero(t, out.Fetched)
		assert.Zero(t, out.Stored)
		assert.Empty(t, ingestor.sources)
	})

	t.Run("propagates source failure", func(t *testing.T) {
		suite := &testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()

		source := &mockArticleSource{err: errors.New("rate limited")}
		act := NewSyncActivities(source, &mockArticleIngestor{}, true)
		env.RegisterActivity(act.SyncArticles)

		_, err := env.ExecuteActivity(act.SyncArticles, SyncArticlesInput{Query: "aspirin"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("propagates store failure", func(t *testing.T) {
		suite := &testsuite.WorkflowTestSuite{}
		env := suite.NewTestActivityEnvironment()

		source := &mockArticleSource{articles: []*domain.Article{{PMID: "1"}}}
		ingestor := &mockArticleIngestor{err: errors.New("store unavailable")}
		act := NewSyncActivities(source, ingestor, true)
		env.RegisterActivity(act.SyncArticles)

		_, err := env.ExecuteActivity(act.SyncArticles, SyncArticlesInput{Query: "aspirin"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store unavailable")
	})
}
