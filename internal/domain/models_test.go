package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTerm(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase conversion", "Aspirin", "aspirin"},
		{"trims whitespace", "  warfarin  ", "warfarin"},
		{"collapses internal whitespace", "liver   failure", "liver failure"},
		{"tabs and newlines", "qt\t\nprolongation", "qt prolongation"},
		{"empty string", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTerm(tt.input))
		})
	}
}

func TestFrequencyInterval(t *testing.T) {
	tests := []struct {
		frequency Frequency
		interval  time.Duration
	}{
		{FrequencyManual, 0},
		{FrequencyDaily, 24 * time.Hour},
		{Frequency8Hours, 8 * time.Hour},
		{Frequency12Hours, 12 * time.Hour},
		{FrequencyWeekly, 7 * 24 * time.Hour},
		{FrequencyMonthly, 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			assert.Equal(t, tt.interval, tt.frequency.Interval())
		})
	}
}

func TestSearchRuleIsDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("inactive rule is never due", func(t *testing.T) {
		rule := SearchRule{IsActive: false, Frequency: FrequencyDaily}
		assert.False(t, rule.IsDue(now))
	})

	t.Run("manual rule is never due", func(t *testing.T) {
		rule := SearchRule{IsActive: true, Frequency: FrequencyManual}
		assert.False(t, rule.IsDue(now))
	})

	t.Run("never-run scheduled rule is due immediately", func(t *testing.T) {
		rule := SearchRule{IsActive: true, Frequency: FrequencyDaily}
		assert.True(t, rule.IsDue(now))
	})

	t.Run("recently run rule is not due", func(t *testing.T) {
		lastRun := now.Add(-2 * time.Hour)
		rule := SearchRule{IsActive: true, Frequency: FrequencyDaily, LastRun: &lastRun}
		assert.False(t, rule.IsDue(now))
	})

	t.Run("stale rule is due", func(t *testing.T) {
		lastRun := now.Add(-25 * time.Hour)
		rule := SearchRule{IsActive: true, Frequency: FrequencyDaily, LastRun: &lastRun}
		assert.True(t, rule.IsDue(now))
	})
}

func TestSearchRuleValidate(t *testing.T) {
	validRule := func() SearchRule {
		return SearchRule{
			ID:        uuid.New(),
			Name:      "aspirin bleeding events",
			Frequency: FrequencyDaily,
			IsActive:  true,
			Criteria: []Criterion{
				{FieldType: FieldTypeDrugName, Value: "aspirin", Operator: OperatorAnd, Group: 0},
				{FieldType: FieldTypeAdverseEvent, Value: "gastrointestinal bleeding", Operator: OperatorAnd, Group: 0},
			},
		}
	}

	t.Run("valid rule passes", func(t *testing.T) {
		rule := validRule()
		require.NoError(t, rule.Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		rule := validRule()
		rule.Name = "  "
		err := rule.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("unknown frequency", func(t *testing.T) {
		rule := validRule()
		rule.Frequency = "hourly"
		assert.Error(t, rule.Validate())
	})

	t.Run("bad criterion reports its index", func(t *testing.T) {
		rule := validRule()
		rule.Criteria[1].FieldType = "journal"
		err := rule.Validate()
		require.Error(t, err)

		var critErr *CriterionError
		require.True(t, errors.As(err, &critErr))
		assert.Equal(t, 1, critErr.Index)
		assert.Equal(t, "field_type", critErr.Field)
	})

	t.Run("empty criterion value", func(t *testing.T) {
		rule := validRule()
		rule.Criteria[0].Value = "   "
		err := rule.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("negative group", func(t *testing.T) {
		rule := validRule()
		rule.Criteria[0].Group = -1
		assert.Error(t, rule.Validate())
	})
}

func TestRelevanceScore(t *testing.T) {
	tests := []struct {
		name          string
		matched       int
		totalCriteria int
		expected      float64
	}{
		{"full match", 1, 1, 1.0},
		{"half match", 1, 2, 0.5},
		{"zero criteria scores zero", 3, 0, 0},
		{"zero matches scores zero", 0, 4, 0},
		{"clamped to one", 5, 3, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RelevanceScore(tt.matched, tt.totalCriteria), 1e-9)
		})
	}

	t.Run("monotonic in matched count", func(t *testing.T) {
		prev := 0.0
		for matched := 1; matched <= 6; matched++ {
			score := RelevanceScore(matched, 6)
			assert.Greater(t, score, prev)
			prev = score
		}
	})
}

func TestReviewStatus(t *testing.T) {
	assert.True(t, ReviewStatusPending.IsValid())
	assert.True(t, ReviewStatusReviewed.IsValid())
	assert.False(t, ReviewStatus("archived").IsValid())

	assert.False(t, ReviewStatusPending.IsReviewerAction())
	assert.True(t, ReviewStatusFlagged.IsReviewerAction())
	assert.True(t, ReviewStatusDismissed.IsReviewerAction())
}

func TestArticleText(t *testing.T) {
	article := Article{
		PMID:      "12345678",
		Title:     "Aspirin reduces risk",
		Abstract:  "A randomized controlled trial.",
		Authors:   []string{"Smith J", "Jones A"},
		Keywords:  []string{"aspirin", "prevention"},
		MeshTerms: []string{"Hemorrhage"},
	}

	assert.Equal(t, "Aspirin reduces risk A randomized controlled trial.", article.SearchText())
	assert.Equal(t, "Smith J; Jones A", article.AuthorText())
	assert.Equal(t, "aspirin; prevention; Hemorrhage", article.IndexText())

	t.Run("no abstract", func(t *testing.T) {
		bare := Article{Title: "Ibuprofen study"}
		assert.Equal(t, "Ibuprofen study", bare.SearchText())
	})
}

func TestAdverseEventTermAllForms(t *testing.T) {
	term := AdverseEventTerm{
		Term:     "Hepatotoxicity",
		Synonyms: []string{"liver injury", "Liver  Injury", "DILI", ""},
	}

	forms := term.AllForms()
	assert.Equal(t, []string{"hepatotoxicity", "liver injury", "dili"}, forms)
}
