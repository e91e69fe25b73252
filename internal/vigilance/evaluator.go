package vigilance

import (
	"sort"
	"strings"

	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
)

// SynonymIndex maps a normalized adverse event term to its normalized
// synonyms. Adverse event criteria match when the configured term or any of
// its synonyms appears in the article.
type SynonymIndex map[string][]string

// BuildSynonymIndex builds a SynonymIndex from the adverse event term
// registry. Terms and synonyms are normalized so that lookups by normalized
// criterion value hit regardless of casing or spacing.
func BuildSynonymIndex(terms []*domain.AdverseEventTerm) SynonymIndex {
	if len(terms) == 0 {
		return nil
	}
	index := make(SynonymIndex, len(terms))
	for _, term := range terms {
		key := domain.NormalizeTerm(term.Term)
		if key == "" {
			continue
		}
		synonyms := make([]string, 0, len(term.Synonyms))
		for _, s := range term.Synonyms {
			if normalized := domain.NormalizeTerm(s); normalized != "" {
				synonyms = append(synonyms, normalized)
			}
		}
		index[key] = synonyms
	}
	return index
}

// Match is the outcome of evaluating one rule against one article.
type Match struct {
	// Matched reports whether any criterion group matched.
	Matched bool

	// MatchedTerms lists the distinct normalized criterion values that hit,
	// in criterion evaluation order. Hits are only counted from groups whose
	// operator chain matched; a lone hit inside a failed AND group admits
	// nothing and contributes nothing. Empty unless Matched.
	MatchedTerms []string

	// Score is the relevance score: distinct matched terms over total
	// criteria, clamped to [0, 1]. Zero unless Matched.
	Score float64
}

// compiledCriterion is a criterion prepared for repeated evaluation: the
// value is normalized and adverse event criteria carry their synonym set.
type compiledCriterion struct {
	fieldType domain.FieldType
	value     string
	operator  domain.Operator
	terms     []string
}

// Evaluator evaluates a single compiled rule against articles. Compilation
// happens once per evaluation pass; Evaluate is called once per article and
// is safe for concurrent use.
type Evaluator struct {
	groups [][]compiledCriterion
	total  int
}

// NewEvaluator compiles a rule for evaluation. The synonym index may be nil
// when the rule has no adverse event criteria.
func NewEvaluator(rule *domain.SearchRule, synonyms SynonymIndex) *Evaluator {
	ordered := make([]domain.Criterion, len(rule.Criteria))
	copy(ordered, rule.Criteria)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Group != ordered[j].Group {
			return ordered[i].Group < ordered[j].Group
		}
		return ordered[i].Order < ordered[j].Order
	})

	byGroup := make(map[int][]compiledCriterion)
	for i := range ordered {
		c := &ordered[i]
		value := domain.NormalizeTerm(c.Value)
		if value == "" {
			continue
		}
		terms := []string{value}
		if c.FieldType == domain.FieldTypeAdverseEvent {
			terms = append(terms, synonyms[value]...)
		}
		byGroup[c.Group] = append(byGroup[c.Group], compiledCriterion{
			fieldType: c.FieldType,
			value:     value,
			operator:  c.Operator,
			terms:     terms,
		})
	}

	groupNums := make([]int, 0, len(byGroup))
	for g := range byGroup {
		groupNums = append(groupNums, g)
	}
	sort.Ints(groupNums)

	e := &Evaluator{groups: make([][]compiledCriterion, 0, len(groupNums))}
	for _, g := range groupNums {
		group := byGroup[g]
		e.groups = append(e.groups, group)
		e.total += len(group)
	}
	return e
}

// CriteriaCount returns the number of criteria the evaluator was compiled with.
func (e *Evaluator) CriteriaCount() int {
	return e.total
}

// Evaluate tests an article against the compiled rule. Every criterion is
// tested, with no short-circuiting, so that MatchedTerms reflects every hit
// within the groups that matched. A rule with no criteria matches nothing.
func (e *Evaluator) Evaluate(article *domain.Article) Match {
	if article == nil || len(e.groups) == 0 {
		return Match{}
	}

	searchText := strings.ToLower(article.SearchText())
	authorText := strings.ToLower(article.AuthorText())
	indexText := strings.ToLower(article.IndexText())

	matched := false
	seen := make(map[string]bool)
	var matchedTerms []string

	for _, group := range e.groups {
		groupMatched := false
		groupHits := make([]string, 0, len(group))
		for i, c := range group {
			hit := c.match(searchText, authorText, indexText)
			if hit {
				groupHits = append(groupHits, c.value)
			}
			switch {
			case i == 0:
				groupMatched = hit
			case c.operator == domain.OperatorOr:
				groupMatched = groupMatched || hit
			default:
				groupMatched = groupMatched && hit
			}
		}
		if !groupMatched {
			continue
		}
		matched = true
		for _, value := range groupHits {
			if !seen[value] {
				seen[value] = true
				matchedTerms = append(matchedTerms, value)
			}
		}
	}

	if !matched {
		return Match{}
	}
	return Match{
		Matched:      true,
		MatchedTerms: matchedTerms,
		Score:        domain.RelevanceScore(len(matchedTerms), e.total),
	}
}

// match tests the criterion against the article text selected by its field
// type. Adverse event criteria search both the keyword/MeSH index and the
// title+abstract text, and hit when the term or any synonym is contained.
func (c *compiledCriterion) match(searchText, authorText, indexText string) bool {
	switch c.fieldType {
	case domain.FieldTypeAuthor:
		return containsAny(authorText, c.terms)
	case domain.FieldTypeAdverseEvent:
		return containsAny(indexText, c.terms) || containsAny(searchText, c.terms)
	default:
		return containsAny(searchText, c.terms)
	}
}

func containsAny(haystack string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
