package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// RuleRepository handles search rule persistence. Rules and their criteria are
// stored together: Create and Update always write the full rule including its
// criterion list, and reads return rules with criteria loaded in evaluation
// order (group, then order within group).
type RuleRepository interface {
	// Create inserts a new search rule together with its criteria.
	// The rule must have a valid ID and pass domain validation.
	// Returns domain.ErrAlreadyExists if a rule with the same ID already exists.
	Create(ctx context.Context, rule *domain.SearchRule) error

	// Get retrieves a search rule by its ID with criteria loaded.
	// Returns domain.ErrNotFound if no matching rule exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.SearchRule, error)

	// Update replaces a rule's fields and its entire criterion list atomically.
	// Results produced by earlier criterion versions are not touched.
	// Returns domain.ErrNotFound if no matching rule exists.
	Update(ctx context.Context, rule *domain.SearchRule) error

	// Delete removes a search rule. Criteria and results cascade.
	// Returns domain.ErrNotFound if no matching rule exists.
	Delete(ctx context.Context, id uuid.UUID) error

	// List retrieves search rules matching the filter criteria.
	// Returns the matching rules and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter RuleFilter) ([]*domain.SearchRule, int64, error)

	// ListDue returns active scheduled rules whose next run time is at or
	// before now, with criteria loaded. Manual and inactive rules are never
	// returned.
	ListDue(ctx context.Context, now time.Time) ([]*domain.SearchRule, error)

	// UpdateLastRun records the completion time of a successful evaluation pass.
	// Returns domain.ErrNotFound if no matching rule exists.
	UpdateLastRun(ctx context.Context, id uuid.UUID, lastRun time.Time) error
}

// RuleFilter specifies criteria for listing search rules.
type RuleFilter struct {
	// IsActive filters by active flag (optional).
	IsActive *bool

	// Frequency filters by scan frequency (optional).
	Frequency domain.Frequency

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}
