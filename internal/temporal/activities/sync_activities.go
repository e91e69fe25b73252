package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/pubmed"
)

// articleSourceName tags synced records with their origin store.
const articleSourceName = "pubmed"

// ArticleSource fetches article records matching a query.
type ArticleSource interface {
	Search(ctx context.Context, query string, opts pubmed.SearchOptions) ([]*domain.Article, error)
}

// ArticleIngestor persists fetched article records.
type ArticleIngestor interface {
	IngestArticles(ctx context.Context, source string, articles []*domain.Article) (int, error)
}

// SyncActivities provides Temporal activities for pulling new articles from
// PubMed into the local store.
type SyncActivities struct {
	source   ArticleSource
	ingestor ArticleIngestor
	enabled  bool
}

// NewSyncActivities creates a new SyncActivities instance. When enabled is
// false the SyncArticles activity reports a skipped sync without calling the
// source, so the scheduler workflow stays identical across deployments.
func NewSyncActivities(source ArticleSource, ingestor ArticleIngestor, enabled bool) *SyncActivities {
	return &SyncActivities{
		source:   source,
		ingestor: ingestor,
		enabled:  enabled,
	}
}

// SyncArticles fetches articles matching the configured query and upserts
// them into the local store.
func (a *SyncActivities) SyncArticles(ctx context.Context, input SyncArticlesInput) (*SyncArticlesOutput, error) {
	logger := activity.GetLogger(ctx)

	if !a.enabled || input.Query == "" {
		logger.Info("article sync skipped", "enabled", a.enabled)
		return &SyncArticlesOutput{Skipped: true}, nil
	}

	logger.Info("syncing articles", "query", input.Query, "maxResults", input.MaxResults)

	articles, err := a.source.Search(ctx, input.Query, pubmed.SearchOptions{
		MaxResults: input.MaxResults,
		From:       input.From,
	})
	if err != nil {
		return nil, err
	}

	stored := 0
	if len(articles) > 0 {
		stored, err = a.ingestor.IngestArticles(ctx, articleSourceName, articles)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("article sync completed", "fetched", len(articles), "stored", stored)
	return &SyncArticlesOutput{
		Fetched: len(articles),
		Stored:  stored,
	}, nil
}
