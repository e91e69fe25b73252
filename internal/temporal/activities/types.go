// Package activities provides Temporal activity implementations for the
// scheduled rule scan pipeline.
//
// Activity inputs and outputs are defined as serializable structs that cross
// the Temporal serialization boundary. All fields must be exported for JSON
// serialization by the Temporal SDK's default data converter.
package activities

import (
	"time"

	"github.com/google/uuid"
)

// ListDueRulesInput contains the parameters for the due-rule listing activity.
type ListDueRulesInput struct {
	// Now is the reference time used to decide which rules are due.
	Now time.Time
}

// ListDueRulesOutput contains the results of the due-rule listing activity.
type ListDueRulesOutput struct {
	// RuleIDs contains the identifiers of rules whose next scheduled scan
	// has come due.
	RuleIDs []uuid.UUID
}

// SyncArticlesInput contains the parameters for the article sync activity.
type SyncArticlesInput struct {
	// Query is the PubMed search term used to pull new articles.
	Query string

	// From restricts the search to articles published on or after this date.
	// Nil means no lower bound.
	From *time.Time

	// MaxResults caps the number of articles fetched. Zero uses the client
	// default.
	MaxResults int
}

// SyncArticlesOutput contains the results of the article sync activity.
type SyncArticlesOutput struct {
	// Fetched is the number of article records returned by the source.
	Fetched int

	// Stored is the number of records written to the local store.
	Stored int

	// Skipped is true when the sync pipeline is disabled by configuration.
	Skipped bool
}

// EvaluateRuleInput contains the parameters for the rule evaluation activity.
type EvaluateRuleInput struct {
	// RuleID identifies the search rule to evaluate.
	RuleID uuid.UUID

	// Trigger records what initiated the scan ("manual" or "scheduled").
	Trigger string
}

// EvaluateRuleOutput contains the results of the rule evaluation activity.
type EvaluateRuleOutput struct {
	// RuleID is the evaluated rule's identifier.
	RuleID uuid.UUID

	// ArticlesScanned is the number of articles examined during the pass.
	ArticlesScanned int

	// Matched is the number of articles that satisfied the rule.
	Matched int

	// Created is the number of new search results recorded.
	Created int

	// Refreshed is the number of existing results touched again.
	Refreshed int

	// DurationSeconds is the wall-clock duration of the pass.
	DurationSeconds float64
}
