package vigilance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/observability"
	"github.com/trialsignal/pharmacovigilance-service/internal/repository"
)

// defaultArticleBatchSize is the article store page size used when the
// configured batch size is not positive.
const defaultArticleBatchSize = 500

// Scan triggers, recorded on scan metrics and events.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// AdvisoryLocker serializes evaluation passes per rule. Implemented by
// database.DB with Postgres session advisory locks.
type AdvisoryLocker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) error
}

// EventPublisher publishes domain events for downstream consumers. Publish
// failures are logged and counted but never fail an evaluation pass.
type EventPublisher interface {
	PublishResultCreated(ctx context.Context, rule *domain.SearchRule, result *domain.SearchResult) error
	PublishScanCompleted(ctx context.Context, rule *domain.SearchRule, summary *ScanSummary) error
}

// Notifier delivers new-result digests to a rule's notification addresses.
// Delivery failures are logged and counted but never fail an evaluation pass.
type Notifier interface {
	NotifyNewResults(ctx context.Context, rule *domain.SearchRule, created []*domain.SearchResult) error
}

// Deps carries the collaborators for a Service. Events and Notifier are
// optional; everything else is required.
type Deps struct {
	Rules    repository.RuleRepository
	Articles repository.ArticleRepository
	Results  repository.ResultRepository
	Terms    repository.TermRepository
	Locker   AdvisoryLocker
	Events   EventPublisher
	Notifier Notifier
	Metrics  *observability.Metrics
	Logger   zerolog.Logger

	// ArticleBatchSize is the article store page size per evaluation pass.
	ArticleBatchSize int
}

// Service is the pharmacovigilance core: rule management, evaluation passes,
// result recording, and the review workflow.
type Service struct {
	rules     repository.RuleRepository
	articles  repository.ArticleRepository
	results   repository.ResultRepository
	terms     repository.TermRepository
	locker    AdvisoryLocker
	events    EventPublisher
	notifier  Notifier
	metrics   *observability.Metrics
	logger    zerolog.Logger
	batchSize int
}

// NewService creates a Service from its dependencies.
func NewService(deps Deps) *Service {
	batchSize := deps.ArticleBatchSize
	if batchSize <= 0 {
		batchSize = defaultArticleBatchSize
	}
	return &Service{
		rules:     deps.Rules,
		articles:  deps.Articles,
		results:   deps.Results,
		terms:     deps.Terms,
		locker:    deps.Locker,
		events:    deps.Events,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With().Str("component", "vigilance").Logger(),
		batchSize: batchSize,
	}
}

// CreateRule validates and persists a new search rule with its criteria.
// A missing rule ID is assigned.
func (s *Service) CreateRule(ctx context.Context, rule *domain.SearchRule) error {
	if rule == nil {
		return domain.NewValidationError("rule", "rule cannot be nil")
	}
	if rule.Frequency == "" {
		rule.Frequency = domain.FrequencyManual
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return err
	}
	ruleLogger := observability.WithRuleContext(s.logger, rule.ID.String(), rule.Name)
	ruleLogger.Info().
		Int("criteria", len(rule.Criteria)).
		Str("frequency", string(rule.Frequency)).
		Msg("search rule created")
	return nil
}

// GetRule retrieves a rule with its criteria.
func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*domain.SearchRule, error) {
	return s.rules.Get(ctx, id)
}

// UpdateRule validates and persists rule changes. The criterion list replaces
// the stored one atomically; results from earlier criterion versions are kept.
func (s *Service) UpdateRule(ctx context.Context, rule *domain.SearchRule) error {
	if rule == nil {
		return domain.NewValidationError("rule", "rule cannot be nil")
	}
	if rule.ID == uuid.Nil {
		return domain.NewValidationError("id", "rule id is required")
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		return err
	}
	ruleLogger := observability.WithRuleContext(s.logger, rule.ID.String(), rule.Name)
	ruleLogger.Info().
		Int("criteria", len(rule.Criteria)).
		Msg("search rule updated")
	return nil
}

// DeleteRule removes a rule. Its criteria and results cascade.
func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("rule_id", id.String()).Msg("search rule deleted")
	return nil
}

// ListRules lists rules matching the filter.
func (s *Service) ListRules(ctx context.Context, filter repository.RuleFilter) ([]*domain.SearchRule, int64, error) {
	return s.rules.List(ctx, filter)
}

// DueRules returns active scheduled rules due for evaluation at now.
func (s *Service) DueRules(ctx context.Context, now time.Time) ([]*domain.SearchRule, error) {
	return s.rules.ListDue(ctx, now)
}

// GetResult retrieves a single search result.
func (s *Service) GetResult(ctx context.Context, id uuid.UUID) (*domain.SearchResult, error) {
	return s.results.Get(ctx, id)
}

// ListResults lists results matching the filter.
func (s *Service) ListResults(ctx context.Context, filter repository.ResultFilter) ([]*domain.SearchResult, int64, error) {
	return s.results.List(ctx, filter)
}

// ResultCounts returns per-status result counts for a rule.
func (s *Service) ResultCounts(ctx context.Context, ruleID uuid.UUID) (map[domain.ReviewStatus]int64, error) {
	return s.results.CountByStatus(ctx, ruleID)
}

// ReviewResult applies a reviewer action to a result. Transitions are allowed
// from any state, including re-applying the current one, and always stamp the
// reviewed time.
func (s *Service) ReviewResult(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, notes string) (*domain.SearchResult, error) {
	if !status.IsReviewerAction() {
		return nil, domain.NewValidationError("review_status", "status must be reviewed, flagged, or dismissed")
	}
	result, err := s.results.UpdateReview(ctx, id, status, notes, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordReviewTransition(string(status))
	s.logger.Info().
		Str("result_id", id.String()).
		Str("review_status", string(status)).
		Msg("review action applied")
	return result, nil
}

// GetArticle retrieves an article by PMID.
func (s *Service) GetArticle(ctx context.Context, pmid string) (*domain.Article, error) {
	if pmid == "" {
		return nil, domain.NewValidationError("pmid", "pmid is required")
	}
	return s.articles.Get(ctx, pmid)
}

// ListArticles lists stored articles matching the filter.
func (s *Service) ListArticles(ctx context.Context, filter repository.ArticleFilter) ([]*domain.Article, int64, error) {
	return s.articles.List(ctx, filter)
}

// IngestArticles upserts a batch of synced articles and returns the number of
// new rows. Used by the article sync pipeline.
func (s *Service) IngestArticles(ctx context.Context, source string, articles []*domain.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	created, err := s.articles.UpsertBatch(ctx, articles)
	if err != nil {
		return 0, fmt.Errorf("ingesting articles: %w", err)
	}
	s.metrics.RecordArticlesSynced(source, len(articles))
	s.logger.Info().
		Str("source", source).
		Int("articles", len(articles)).
		Int("created", created).
		Msg("articles ingested")
	return created, nil
}

// ListTerms lists adverse event terms, optionally filtered by category.
func (s *Service) ListTerms(ctx context.Context, category string) ([]*domain.AdverseEventTerm, error) {
	return s.terms.List(ctx, category)
}

// CreateTerm registers a new adverse event term.
func (s *Service) CreateTerm(ctx context.Context, term *domain.AdverseEventTerm) error {
	return s.terms.Create(ctx, term)
}

// DeleteTerm removes an adverse event term from the registry.
func (s *Service) DeleteTerm(ctx context.Context, id uuid.UUID) error {
	return s.terms.Delete(ctx, id)
}
