package vigilance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trialsignal/pharmacovigilance-service/internal/database"
	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/observability"
)

// ScanSummary reports the outcome of one evaluation pass.
type ScanSummary struct {
	// RuleID is the evaluated rule.
	RuleID uuid.UUID `json:"rule_id"`

	// Trigger is what started the pass: manual or scheduled.
	Trigger string `json:"trigger"`

	// ArticlesScanned is the number of articles examined.
	ArticlesScanned int `json:"articles_scanned"`

	// Matched is the number of articles the rule matched.
	Matched int `json:"matched"`

	// Created is the number of new search results recorded.
	Created int `json:"created"`

	// Refreshed is the number of existing results whose match data was updated.
	Refreshed int `json:"refreshed"`

	// Duration is the wall-clock time of the pass.
	Duration time.Duration `json:"duration"`
}

// RunRule executes one evaluation pass for a rule: it pages the article store,
// evaluates each article, and records matches. The rule's last run time is
// updated only when the pass completes without error, so a failed pass is
// retried from the scheduler's perspective.
//
// Passes for the same rule are serialized with a Postgres advisory lock;
// a held lock returns domain.ErrEvaluationInProgress without scanning.
func (s *Service) RunRule(ctx context.Context, ruleID uuid.UUID, trigger string) (*ScanSummary, error) {
	rule, err := s.rules.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	key := database.RuleLockKey(rule.ID)
	acquired, err := s.locker.AcquireAdvisoryLock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock for rule %s: %w", rule.ID, err)
	}
	if !acquired {
		s.metrics.RecordScanConflicted()
		return nil, fmt.Errorf("rule %s: %w", rule.ID, domain.ErrEvaluationInProgress)
	}
	defer func() {
		// Release must not be skipped on caller cancellation, otherwise the
		// pooled session keeps the rule locked.
		if err := s.locker.ReleaseAdvisoryLock(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn().Err(err).Str("rule_id", rule.ID.String()).Msg("failed to release rule lock")
		}
	}()

	logger := observability.WithRuleContext(s.logger, rule.ID.String(), rule.Name)
	logger.Info().Str("trigger", trigger).Msg("starting evaluation pass")

	start := time.Now()
	s.metrics.RecordScanStarted(trigger)

	summary, created, err := s.scan(ctx, rule, trigger)
	if err != nil {
		s.metrics.RecordScanFailed(trigger, time.Since(start).Seconds())
		logger.Error().Err(err).Msg("evaluation pass failed")
		return nil, err
	}

	if err := s.rules.UpdateLastRun(ctx, rule.ID, time.Now().UTC()); err != nil {
		s.metrics.RecordScanFailed(trigger, time.Since(start).Seconds())
		return nil, fmt.Errorf("updating last run for rule %s: %w", rule.ID, err)
	}

	summary.Duration = time.Since(start)
	s.metrics.RecordScanCompleted(trigger, summary.ArticlesScanned, summary.Matched, summary.Duration.Seconds())
	s.metrics.RecordResultsRecorded(summary.Created, summary.Refreshed)

	s.notifyNewResults(ctx, rule, created, logger)
	s.publishScanCompleted(ctx, rule, summary, logger)

	logger.Info().
		Str("trigger", trigger).
		Int("articles_scanned", summary.ArticlesScanned).
		Int("matched", summary.Matched).
		Int("created", summary.Created).
		Int("refreshed", summary.Refreshed).
		Dur("duration", summary.Duration).
		Msg("evaluation pass completed")
	return summary, nil
}

// scan pages the article store and records matches. Returns the summary and
// the newly created results for notification.
func (s *Service) scan(ctx context.Context, rule *domain.SearchRule, trigger string) (*ScanSummary, []*domain.SearchResult, error) {
	evaluator, err := s.compileRule(ctx, rule)
	if err != nil {
		return nil, nil, err
	}

	summary := &ScanSummary{RuleID: rule.ID, Trigger: trigger}
	var created []*domain.SearchResult

	after := ""
	for {
		page, err := s.articles.ListPage(ctx, after, s.batchSize)
		if err != nil {
			return nil, nil, fmt.Errorf("listing articles: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, article := range page {
			summary.ArticlesScanned++
			match := evaluator.Evaluate(article)
			if !match.Matched {
				continue
			}
			summary.Matched++

			result := domain.NewSearchResult(rule.ID, article.PMID, match.MatchedTerms, match.Score)
			inserted, err := s.results.Upsert(ctx, result)
			if err != nil {
				return nil, nil, fmt.Errorf("recording result for article %s: %w", article.PMID, err)
			}
			if inserted {
				summary.Created++
				created = append(created, result)
				s.publishResultCreated(ctx, rule, result)
			} else {
				summary.Refreshed++
			}
		}

		after = page[len(page)-1].PMID
		if len(page) < s.batchSize {
			break
		}
	}

	return summary, created, nil
}

// compileRule builds the evaluator for a pass, loading the adverse event term
// registry only when the rule has adverse event criteria.
func (s *Service) compileRule(ctx context.Context, rule *domain.SearchRule) (*Evaluator, error) {
	var synonyms SynonymIndex
	if ruleHasAdverseEventCriteria(rule) {
		terms, err := s.terms.List(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("loading adverse event terms: %w", err)
		}
		synonyms = BuildSynonymIndex(terms)
	}
	return NewEvaluator(rule, synonyms), nil
}

func ruleHasAdverseEventCriteria(rule *domain.SearchRule) bool {
	for i := range rule.Criteria {
		if rule.Criteria[i].FieldType == domain.FieldTypeAdverseEvent {
			return true
		}
	}
	return false
}

// publishResultCreated emits a result.created event. Best effort.
func (s *Service) publishResultCreated(ctx context.Context, rule *domain.SearchRule, result *domain.SearchResult) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishResultCreated(ctx, rule, result); err != nil {
		s.metrics.RecordEventFailed("result.created")
		s.logger.Warn().Err(err).
			Str("rule_id", rule.ID.String()).
			Str("article_pmid", result.ArticlePMID).
			Msg("failed to publish result.created event")
		return
	}
	s.metrics.RecordEventPublished("result.created")
}

// publishScanCompleted emits a scan.completed event. Best effort.
func (s *Service) publishScanCompleted(ctx context.Context, rule *domain.SearchRule, summary *ScanSummary, logger zerolog.Logger) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishScanCompleted(ctx, rule, summary); err != nil {
		s.metrics.RecordEventFailed("scan.completed")
		logger.Warn().Err(err).Msg("failed to publish scan.completed event")
		return
	}
	s.metrics.RecordEventPublished("scan.completed")
}

// notifyNewResults sends the new-results digest for rules with notification
// addresses. Delivery failures never fail the pass.
func (s *Service) notifyNewResults(ctx context.Context, rule *domain.SearchRule, created []*domain.SearchResult, logger zerolog.Logger) {
	if s.notifier == nil || len(created) == 0 || len(rule.NotificationEmails) == 0 {
		return
	}
	if err := s.notifier.NotifyNewResults(ctx, rule, created); err != nil {
		s.metrics.RecordNotificationFailed("email")
		logger.Warn().Err(err).Int("created", len(created)).Msg("failed to send new results notification")
		return
	}
	s.metrics.RecordNotificationSent("email")
}
