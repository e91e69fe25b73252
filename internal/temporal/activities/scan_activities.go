package activities

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/vigilance"
)

// RuleScanner runs rule evaluation passes and reports which rules are due.
// This decouples the activities from the concrete vigilance.Service, enabling
// straightforward testing with mock implementations.
type RuleScanner interface {
	RunRule(ctx context.Context, ruleID uuid.UUID, trigger string) (*vigilance.ScanSummary, error)
	DueRules(ctx context.Context, now time.Time) ([]*domain.SearchRule, error)
}

// ScanActivities provides Temporal activities for rule scan operations.
// Methods on this struct are registered as Temporal activities via the worker.
type ScanActivities struct {
	scanner RuleScanner
}

// NewScanActivities creates a new ScanActivities instance.
func NewScanActivities(scanner RuleScanner) *ScanActivities {
	return &ScanActivities{scanner: scanner}
}

// ListDueRules returns the identifiers of rules whose scheduled scan is due.
func (a *ScanActivities) ListDueRules(ctx context.Context, input ListDueRulesInput) (*ListDueRulesOutput, error) {
	logger := activity.GetLogger(ctx)

	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rules, err := a.scanner.DueRules(ctx, now)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(rules))
	for _, rule := range rules {
		ids = append(ids, rule.ID)
	}

	logger.Info("listed due rules", "count", len(ids))
	return &ListDueRulesOutput{RuleIDs: ids}, nil
}

// EvaluateRule runs a full evaluation pass for one rule.
//
// A pass already in progress on another worker and a rule that no longer
// exists are both returned as non-retryable application errors, since
// retrying cannot change the outcome within this scan.
func (a *ScanActivities) EvaluateRule(ctx context.Context, input EvaluateRuleInput) (*EvaluateRuleOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("evaluating rule", "ruleID", input.RuleID, "trigger", input.Trigger)

	summary, err := a.scanner.RunRule(ctx, input.RuleID, input.Trigger)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEvaluationInProgress):
			return nil, temporal.NewNonRetryableApplicationError(
				"evaluation already in progress", "EvaluationInProgress", err)
		case errors.Is(err, domain.ErrNotFound):
			return nil, temporal.NewNonRetryableApplicationError(
				"rule not found", "RuleNotFound", err)
		default:
			return nil, err
		}
	}

	logger.Info("rule evaluated",
		"ruleID", input.RuleID,
		"articlesScanned", summary.ArticlesScanned,
		"matched", summary.Matched,
		"created", summary.Created,
	)

	return &EvaluateRuleOutput{
		RuleID:          summary.RuleID,
		ArticlesScanned: summary.ArticlesScanned,
		Matched:         summary.Matched,
		Created:         summary.Created,
		Refreshed:       summary.Refreshed,
		DurationSeconds: summary.Duration.Seconds(),
	}, nil
}
