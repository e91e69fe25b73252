// Package vigilance implements the pharmacovigilance matching core: rule
// evaluation against the article store, result recording with review-state
// preservation, and the reviewer workflow.
//
// Evaluation semantics: a rule's criteria are partitioned into groups. Within
// a group, criteria combine left-to-right using each criterion's operator,
// without short-circuiting. Groups combine with OR, so a rule matches an
// article when any one of its groups matches. Matching is case-insensitive
// substring containment against the article field selected by the criterion's
// field type.
//
// Concurrent evaluation of distinct rules is allowed; evaluation of the same
// rule is serialized through a Postgres advisory lock keyed by the rule ID.
// A pass that cannot take the lock fails fast with
// domain.ErrEvaluationInProgress.
package vigilance
