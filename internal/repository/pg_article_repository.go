package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// Compile-time interface verification.
var _ ArticleRepository = (*PgArticleRepository)(nil)

// PgArticleRepository is a PostgreSQL implementation of ArticleRepository.
type PgArticleRepository struct {
	db DBTX
}

// NewPgArticleRepository creates a new PostgreSQL article repository.
func NewPgArticleRepository(db DBTX) *PgArticleRepository {
	return &PgArticleRepository{db: db}
}

const articleUpsertQuery = `
	INSERT INTO articles (
		pmid, title, abstract, publication_date, authors,
		keywords, mesh_terms, doi, journal, article_url,
		last_scanned, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (pmid) DO UPDATE SET
		title = EXCLUDED.title,
		abstract = EXCLUDED.abstract,
		publication_date = EXCLUDED.publication_date,
		authors = EXCLUDED.authors,
		keywords = EXCLUDED.keywords,
		mesh_terms = EXCLUDED.mesh_terms,
		doi = EXCLUDED.doi,
		journal = EXCLUDED.journal,
		article_url = EXCLUDED.article_url,
		updated_at = EXCLUDED.updated_at`

// Upsert inserts an article or updates its metadata if the PMID already exists.
func (r *PgArticleRepository) Upsert(ctx context.Context, article *domain.Article) error {
	if article == nil {
		return domain.NewValidationError("article", "article cannot be nil")
	}
	if article.PMID == "" {
		return domain.NewValidationError("pmid", "PMID is required")
	}

	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, articleUpsertQuery,
		article.PMID, article.Title, article.Abstract, article.PublicationDate, article.Authors,
		article.Keywords, article.MeshTerms, article.DOI, article.Journal, article.ArticleURL,
		article.LastScanned, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert article: %w", err)
	}
	return nil
}

// UpsertBatch upserts a batch of articles and returns the number of new rows created.
func (r *PgArticleRepository) UpsertBatch(ctx context.Context, articles []*domain.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	// xmax = 0 distinguishes a fresh insert from a conflict update.
	query := articleUpsertQuery + `
	RETURNING (xmax = 0) AS inserted`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, article := range articles {
		if article.PMID == "" {
			return 0, domain.NewValidationError("pmid", "PMID is required")
		}
		batch.Queue(query,
			article.PMID, article.Title, article.Abstract, article.PublicationDate, article.Authors,
			article.Keywords, article.MeshTerms, article.DOI, article.Journal, article.ArticleURL,
			article.LastScanned, now, now,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	created := 0
	for range articles {
		var inserted bool
		if err := results.QueryRow().Scan(&inserted); err != nil {
			return created, fmt.Errorf("failed to upsert article batch: %w", err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

// Get retrieves an article by PMID.
func (r *PgArticleRepository) Get(ctx context.Context, pmid string) (*domain.Article, error) {
	if pmid == "" {
		return nil, domain.NewValidationError("pmid", "PMID is required")
	}

	query := `
		SELECT pmid, title, abstract, publication_date, authors,
			keywords, mesh_terms, doi, journal, article_url,
			last_scanned, created_at, updated_at
		FROM articles
		WHERE pmid = $1`

	row := r.db.QueryRow(ctx, query, pmid)
	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("article", pmid)
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

// List retrieves articles matching the filter criteria.
func (r *PgArticleRepository) List(ctx context.Context, filter ArticleFilter) ([]*domain.Article, int64, error) {
	applyPaginationDefaults(&filter.Limit, &filter.Offset)

	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIndex := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR abstract ILIKE $%d)", argIndex, argIndex))
		// Escape LIKE special characters to prevent pattern injection.
		escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(filter.Search)
		args = append(args, "%"+escaped+"%")
		argIndex++
	}

	if filter.Journal != "" {
		conditions = append(conditions, fmt.Sprintf("journal = $%d", argIndex))
		args = append(args, filter.Journal)
		argIndex++
	}

	if filter.PublishedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("publication_date > $%d", argIndex))
		args = append(args, *filter.PublishedAfter)
		argIndex++
	}

	if filter.PublishedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("publication_date < $%d", argIndex))
		args = append(args, *filter.PublishedBefore)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM articles WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT pmid, title, abstract, publication_date, authors,
			keywords, mesh_terms, doi, journal, article_url,
			last_scanned, created_at, updated_at
		FROM articles
		WHERE %s
		ORDER BY publication_date DESC NULLS LAST, pmid
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	articles, err := r.queryArticles(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}

	return articles, totalCount, nil
}

// ListPage returns a stable page of the full article store ordered by PMID.
func (r *PgArticleRepository) ListPage(ctx context.Context, afterPMID string, limit int) ([]*domain.Article, error) {
	if limit <= 0 {
		limit = defaultFilterLimit
	}
	if limit > maxFilterLimit {
		limit = maxFilterLimit
	}

	query := `
		SELECT pmid, title, abstract, publication_date, authors,
			keywords, mesh_terms, doi, journal, article_url,
			last_scanned, created_at, updated_at
		FROM articles
		WHERE pmid > $1
		ORDER BY pmid
		LIMIT $2`

	return r.queryArticles(ctx, query, afterPMID, limit)
}

// Count returns the total number of stored articles.
func (r *PgArticleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM articles").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// MarkScanned updates the last scanned timestamp for the given PMIDs.
func (r *PgArticleRepository) MarkScanned(ctx context.Context, pmids []string, scannedAt time.Time) error {
	if len(pmids) == 0 {
		return nil
	}

	query := `
		UPDATE articles
		SET last_scanned = $1
		WHERE pmid = ANY($2)`

	if _, err := r.db.Exec(ctx, query, scannedAt, pmids); err != nil {
		return fmt.Errorf("failed to mark articles scanned: %w", err)
	}
	return nil
}

// queryArticles runs an article query and scans all rows.
func (r *PgArticleRepository) queryArticles(ctx context.Context, query string, args ...interface{}) ([]*domain.Article, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []*domain.Article
	for rows.Next() {
		article, err := scanArticleFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}

	return articles, nil
}

// scanArticle scans a single row into an Article.
func scanArticle(row pgx.Row) (*domain.Article, error) {
	var article domain.Article
	err := row.Scan(
		&article.PMID, &article.Title, &article.Abstract, &article.PublicationDate, &article.Authors,
		&article.Keywords, &article.MeshTerms, &article.DOI, &article.Journal, &article.ArticleURL,
		&article.LastScanned, &article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// scanArticleFromRows scans the current row from pgx.Rows into an Article.
func scanArticleFromRows(rows pgx.Rows) (*domain.Article, error) {
	var article domain.Article
	err := rows.Scan(
		&article.PMID, &article.Title, &article.Abstract, &article.PublicationDate, &article.Authors,
		&article.Keywords, &article.MeshTerms, &article.DOI, &article.Journal, &article.ArticleURL,
		&article.LastScanned, &article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &article, nil
}
