package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// TermRepository handles the adverse event term registry. The evaluator loads
// the registry to expand adverse_event criteria to synonym sets.
type TermRepository interface {
	// Create inserts a new adverse event term.
	// Returns domain.ErrAlreadyExists if the canonical term already exists.
	Create(ctx context.Context, term *domain.AdverseEventTerm) error

	// Get retrieves a term by its ID.
	// Returns domain.ErrNotFound if no matching term exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.AdverseEventTerm, error)

	// GetByTerm retrieves a term by its canonical name, case-insensitively.
	// Returns domain.ErrNotFound if no matching term exists.
	GetByTerm(ctx context.Context, term string) (*domain.AdverseEventTerm, error)

	// List retrieves terms, optionally filtered by category. Common terms
	// sort first, then alphabetically.
	List(ctx context.Context, category string) ([]*domain.AdverseEventTerm, error)

	// Delete removes a term from the registry.
	// Returns domain.ErrNotFound if no matching term exists.
	Delete(ctx context.Context, id uuid.UUID) error
}
