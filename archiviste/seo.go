// CLAUDE:SUMMARY SEO impact scoring over a two-capture metadata diff.
package archiviste

import (
	"context"
	"fmt"
	"strings"
)

// seoPenalty is one fixed deduction rule. removed fires when the field went
// from set to empty, changed when both sides are set but differ.
type seoPenalty struct {
	field          string
	removed        int
	changed        int
	removedNote    string
	changedNote    string
	recommendation string
}

// seoPenalties is the deduction table, evaluated in order. Points are
// subtracted from a base score of 100, floored at 0.
var seoPenalties = []seoPenalty{
	{
		field: "title", removed: 20, changed: 8,
		removedNote:    "page title removed",
		changedNote:    "page title changed",
		recommendation: "keep the title tag stable; it carries the strongest ranking signal",
	},
	{
		field: "description", removed: 12, changed: 5,
		removedNote:    "meta description removed",
		changedNote:    "meta description changed",
		recommendation: "restore a meta description to control the search snippet",
	},
	{
		field: "h1", removed: 12, changed: 6,
		removedNote:    "h1 heading removed",
		changedNote:    "h1 heading changed",
		recommendation: "keep exactly one descriptive h1 per page",
	},
	{
		field: "canonical", removed: 10, changed: 10,
		removedNote:    "canonical link removed",
		changedNote:    "canonical link changed",
		recommendation: "verify the canonical URL still points at the preferred page",
	},
	{
		field: "og_title", removed: 4, changed: 2,
		removedNote: "og:title removed",
		changedNote: "og:title changed",
	},
	{
		field: "og_description", removed: 3, changed: 2,
		removedNote: "og:description removed",
		changedNote: "og:description changed",
	},
	{
		field: "og_image", removed: 4, changed: 2,
		removedNote: "og:image removed",
		changedNote: "og:image changed",
	},
}

const (
	noindexPenalty   = 30
	wordLossPenalty  = 10
	wordLossFraction = 0.5
)

// AnalyzeSEOChanges scores the SEO impact of the differences between two
// captures. The score starts at 100 and loses fixed points per finding.
func (s *Service) AnalyzeSEOChanges(ctx context.Context, target, ts1, ts2 string) (*SEOResult, error) {
	cmp, err := s.CompareSnapshots(ctx, target, ts1, ts2)
	if err != nil {
		return nil, err
	}

	result := &SEOResult{
		URL:        cmp.URL,
		Timestamp1: cmp.Timestamp1,
		Timestamp2: cmp.Timestamp2,
		HasChanges: cmp.HasChanges,
		Score:      100,
		Severity:   "none",
	}
	if !cmp.HasChanges {
		return result, nil
	}

	for _, p := range seoPenalties {
		fc, ok := cmp.Changes[p.field]
		if !ok {
			continue
		}
		switch {
		case isEmptyValue(fc.After):
			result.Deductions = append(result.Deductions, Deduction{Field: p.field, Points: p.removed, Note: p.removedNote})
			if p.recommendation != "" {
				result.Recommendations = append(result.Recommendations, p.recommendation)
			}
		case isEmptyValue(fc.Before):
			// Field added, not penalized.
		default:
			result.Deductions = append(result.Deductions, Deduction{Field: p.field, Points: p.changed, Note: p.changedNote})
		}
	}

	if fc, ok := cmp.Changes["robots"]; ok {
		after := strings.ToLower(fmt.Sprint(fc.After))
		before := strings.ToLower(fmt.Sprint(fc.Before))
		if strings.Contains(after, "noindex") && !strings.Contains(before, "noindex") {
			result.Deductions = append(result.Deductions, Deduction{
				Field: "robots", Points: noindexPenalty, Note: "noindex directive added",
			})
			result.Recommendations = append(result.Recommendations,
				"remove the noindex directive unless deindexing is intentional")
		}
	}

	if fc, ok := cmp.Changes["word_count"]; ok {
		before, after := asFloat(fc.Before), asFloat(fc.After)
		if before > 0 && after < before*wordLossFraction {
			result.Deductions = append(result.Deductions, Deduction{
				Field:  "word_count",
				Points: wordLossPenalty,
				Note:   fmt.Sprintf("body text shrank from %.0f to %.0f words", before, after),
			})
			result.Recommendations = append(result.Recommendations,
				"large content removals can lose long-tail rankings; confirm the cut was intended")
		}
	}

	for _, d := range result.Deductions {
		result.Score -= d.Points
	}
	if result.Score < 0 {
		result.Score = 0
	}
	result.Severity = severityLabel(result.Score)
	return result, nil
}

func severityLabel(score int) string {
	switch {
	case score >= 90:
		return "low"
	case score >= 70:
		return "moderate"
	case score >= 40:
		return "high"
	default:
		return "critical"
	}
}

// isEmptyValue treats "", nil, and empty arrays as absent. Diff values come
// from a JSON projection, so arrays arrive as []any.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
