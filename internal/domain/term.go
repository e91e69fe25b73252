package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AdverseEventTerm is a curated adverse event vocabulary entry. Terms carry
// synonyms so that an adverse_event criterion matches articles mentioning any
// synonym, not just the canonical term.
type AdverseEventTerm struct {
	// ID is the primary key for this term.
	ID uuid.UUID

	// Term is the canonical adverse event term.
	Term string

	// Category groups related terms (e.g. "cardiovascular", "hepatic").
	Category string

	// Description explains the term.
	Description string

	// Synonyms are alternative spellings and lay terms, matched alongside
	// the canonical term.
	Synonyms []string

	// IsCommon marks frequently used terms surfaced first in pickers.
	IsCommon bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks required fields.
func (t *AdverseEventTerm) Validate() error {
	if strings.TrimSpace(t.Term) == "" {
		return NewValidationError("term", "term is required")
	}
	return nil
}

// AllForms returns the canonical term followed by its synonyms, normalized
// and deduplicated. Used by the evaluator to expand adverse_event criteria.
func (t *AdverseEventTerm) AllForms() []string {
	forms := make([]string, 0, len(t.Synonyms)+1)
	seen := make(map[string]struct{}, len(t.Synonyms)+1)
	for _, form := range append([]string{t.Term}, t.Synonyms...) {
		normalized := NormalizeTerm(form)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		forms = append(forms, normalized)
	}
	return forms
}
