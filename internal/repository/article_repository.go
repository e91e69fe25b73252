package repository

import (
	"context"
	"time"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// ArticleRepository handles persistence of the local article store. Articles
// are keyed by PMID; syncs from upstream sources upsert rather than duplicate.
type ArticleRepository interface {
	// Upsert inserts an article or updates its metadata if the PMID already
	// exists. CreatedAt is preserved on update.
	Upsert(ctx context.Context, article *domain.Article) error

	// UpsertBatch upserts a batch of articles and returns the number of new
	// rows created.
	UpsertBatch(ctx context.Context, articles []*domain.Article) (int, error)

	// Get retrieves an article by PMID.
	// Returns domain.ErrNotFound if no matching article exists.
	Get(ctx context.Context, pmid string) (*domain.Article, error)

	// List retrieves articles matching the filter criteria.
	// Returns the matching articles and total count for pagination.
	List(ctx context.Context, filter ArticleFilter) ([]*domain.Article, int64, error)

	// ListPage returns a stable page of the full article store ordered by
	// PMID, for use by the rule evaluator. Paging by PMID keeps iteration
	// consistent while concurrent syncs insert new rows.
	ListPage(ctx context.Context, afterPMID string, limit int) ([]*domain.Article, error)

	// Count returns the total number of stored articles.
	Count(ctx context.Context) (int64, error)

	// MarkScanned updates the last scanned timestamp for the given PMIDs.
	MarkScanned(ctx context.Context, pmids []string, scannedAt time.Time) error
}

// ArticleFilter specifies criteria for listing articles.
type ArticleFilter struct {
	// Search filters to articles whose title or abstract contains this
	// substring, case-insensitively (optional).
	Search string

	// Journal filters by exact journal name (optional).
	Journal string

	// PublishedAfter filters to articles published after this date (optional).
	PublishedAfter *time.Time

	// PublishedBefore filters to articles published before this date (optional).
	PublishedBefore *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}
