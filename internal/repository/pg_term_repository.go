package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// Compile-time interface verification.
var _ TermRepository = (*PgTermRepository)(nil)

// PgTermRepository is a PostgreSQL implementation of TermRepository.
type PgTermRepository struct {
	db DBTX
}

// NewPgTermRepository creates a new PostgreSQL term repository.
func NewPgTermRepository(db DBTX) *PgTermRepository {
	return &PgTermRepository{db: db}
}

// Create inserts a new adverse event term.
func (r *PgTermRepository) Create(ctx context.Context, term *domain.AdverseEventTerm) error {
	if term == nil {
		return domain.NewValidationError("term", "term cannot be nil")
	}
	if err := term.Validate(); err != nil {
		return err
	}
	if term.ID == uuid.Nil {
		term.ID = uuid.New()
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO adverse_event_terms (
			id, term, category, description, synonyms, is_common, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		term.ID, term.Term, term.Category, term.Description, term.Synonyms, term.IsCommon, now, now,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("term", term.Term)
		}
		return fmt.Errorf("failed to create term: %w", err)
	}

	return nil
}

// Get retrieves a term by its ID.
func (r *PgTermRepository) Get(ctx context.Context, id uuid.UUID) (*domain.AdverseEventTerm, error) {
	query := `
		SELECT id, term, category, description, synonyms, is_common, created_at, updated_at
		FROM adverse_event_terms
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	term, err := scanTerm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("term", id.String())
		}
		return nil, fmt.Errorf("failed to get term: %w", err)
	}

	return term, nil
}

// GetByTerm retrieves a term by its canonical name, case-insensitively.
func (r *PgTermRepository) GetByTerm(ctx context.Context, name string) (*domain.AdverseEventTerm, error) {
	if name == "" {
		return nil, domain.NewValidationError("term", "term is required")
	}

	query := `
		SELECT id, term, category, description, synonyms, is_common, created_at, updated_at
		FROM adverse_event_terms
		WHERE lower(term) = lower($1)`

	row := r.db.QueryRow(ctx, query, name)
	term, err := scanTerm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("term", name)
		}
		return nil, fmt.Errorf("failed to get term by name: %w", err)
	}

	return term, nil
}

// List retrieves terms, optionally filtered by category.
func (r *PgTermRepository) List(ctx context.Context, category string) ([]*domain.AdverseEventTerm, error) {
	query := `
		SELECT id, term, category, description, synonyms, is_common, created_at, updated_at
		FROM adverse_event_terms
		WHERE $1 = '' OR category = $1
		ORDER BY is_common DESC, term`

	rows, err := r.db.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list terms: %w", err)
	}
	defer rows.Close()

	var terms []*domain.AdverseEventTerm
	for rows.Next() {
		var term domain.AdverseEventTerm
		err := rows.Scan(
			&term.ID, &term.Term, &term.Category, &term.Description,
			&term.Synonyms, &term.IsCommon, &term.CreatedAt, &term.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		terms = append(terms, &term)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating terms: %w", err)
	}

	return terms, nil
}

// Delete removes a term from the registry.
func (r *PgTermRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, "DELETE FROM adverse_event_terms WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete term: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("term", id.String())
	}
	return nil
}

// scanTerm scans a single row into an AdverseEventTerm.
func scanTerm(row pgx.Row) (*domain.AdverseEventTerm, error) {
	var term domain.AdverseEventTerm
	err := row.Scan(
		&term.ID, &term.Term, &term.Category, &term.Description,
		&term.Synonyms, &term.IsCommon, &term.CreatedAt, &term.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &term, nil
}
