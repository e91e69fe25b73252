package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldType identifies which article field a criterion is matched against.
type FieldType string

// Criterion field types.
const (
	FieldTypeKeyword      FieldType = "keyword"
	FieldTypeAuthor       FieldType = "author"
	FieldTypeExactPhrase  FieldType = "exact_phrase"
	FieldTypeDrugName     FieldType = "drug_name"
	FieldTypeCompanyName  FieldType = "company_name"
	FieldTypeGenericName  FieldType = "generic_name"
	FieldTypeINNName      FieldType = "inn_name"
	FieldTypeAdverseEvent FieldType = "adverse_event"
)

// IsValid returns true if the field type is one of the known values.
func (f FieldType) IsValid() bool {
	switch f {
	case FieldTypeKeyword, FieldTypeAuthor, FieldTypeExactPhrase,
		FieldTypeDrugName, FieldTypeCompanyName, FieldTypeGenericName,
		FieldTypeINNName, FieldTypeAdverseEvent:
		return true
	}
	return false
}

// Operator is the logical connective applied between a criterion and the
// accumulated result of the criteria before it within the same group.
type Operator string

// Criterion operators.
const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// IsValid returns true if the operator is one of the known values.
func (o Operator) IsValid() bool {
	return o == OperatorAnd || o == OperatorOr
}

// Frequency controls how often a rule is evaluated by the scheduled scanner.
type Frequency string

// Rule evaluation frequencies.
const (
	FrequencyManual  Frequency = "manual"
	FrequencyDaily   Frequency = "daily"
	Frequency8Hours  Frequency = "8_hours"
	Frequency12Hours Frequency = "12_hours"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// IsValid returns true if the frequency is one of the known values.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyManual, FrequencyDaily, Frequency8Hours,
		Frequency12Hours, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Interval returns the evaluation interval for the frequency.
// Manual rules return zero: they are never picked up by the scheduler.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case Frequency8Hours:
		return 8 * time.Hour
	case Frequency12Hours:
		return 12 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Criterion is one atomic text-matching condition within a search rule.
// Criteria are grouped: within a group they combine left-to-right using each
// criterion's operator, and groups combine with OR.
type Criterion struct {
	// ID is the primary key for this criterion.
	ID uuid.UUID

	// RuleID references the owning search rule.
	RuleID uuid.UUID

	// FieldType selects the article field the value is matched against.
	FieldType FieldType

	// Value is the search term. Matching is case-insensitive substring
	// containment.
	Value string

	// Operator connects this criterion to the accumulated result of the
	// criteria before it in the same group.
	Operator Operator

	// Group partitions criteria into OR-combined clauses.
	Group int

	// Order is the evaluation position within the group.
	Order int

	CreatedAt time.Time
}

// Validate checks the criterion fields. index is the position in the
// submitted criteria list, used for error reporting.
func (c *Criterion) Validate(index int) error {
	if !c.FieldType.IsValid() {
		return NewCriterionError(index, "field_type", "unknown field type: "+string(c.FieldType))
	}
	if !c.Operator.IsValid() {
		return NewCriterionError(index, "operator", "operator must be AND or OR")
	}
	if strings.TrimSpace(c.Value) == "" {
		return NewCriterionError(index, "value", "value is required")
	}
	if c.Group < 0 {
		return NewCriterionError(index, "group", "group must be non-negative")
	}
	return nil
}

// SearchRule is a named, schedulable aggregate of criteria scanned against
// the article store for safety signals.
type SearchRule struct {
	// ID is the primary key for this rule.
	ID uuid.UUID

	// Name is the display name of the rule.
	Name string

	// Description explains the purpose of the search.
	Description string

	// IsActive controls whether the scheduler picks this rule up.
	IsActive bool

	// Frequency is how often the scheduler evaluates this rule.
	Frequency Frequency

	// LastRun records when the last successful evaluation pass completed.
	// Nil until the rule has run once. Not updated on failed passes.
	LastRun *time.Time

	// NotificationEmails lists addresses notified when a pass creates new
	// results. Empty disables email notification for this rule.
	NotificationEmails []string

	// Criteria is the ordered criteria set owned by this rule.
	Criteria []Criterion

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the rule and all of its criteria.
func (r *SearchRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if !r.Frequency.IsValid() {
		return NewValidationError("frequency", "unknown frequency: "+string(r.Frequency))
	}
	for i := range r.Criteria {
		if err := r.Criteria[i].Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// IsDue returns true if an active scheduled rule should be evaluated at now.
// Manual and inactive rules are never due. A rule that has never run is due
// immediately.
func (r *SearchRule) IsDue(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	interval := r.Frequency.Interval()
	if interval == 0 {
		return false
	}
	if r.LastRun == nil {
		return true
	}
	return now.Sub(*r.LastRun) >= interval
}

// whitespaceRegex matches one or more whitespace characters.
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeTerm normalizes a search term by lowercasing, trimming, and
// collapsing internal whitespace. Criterion values are normalized before
// matching so that stored matched terms compare consistently.
func NormalizeTerm(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}
