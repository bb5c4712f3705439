package rules

import (
	"sort"
	"strings"

	"uk.co.dudmesh.replybot/internal/model"
)

// Order returns the active rules in evaluation order.
func Order(rules []model.Rule) []model.Rule {
	active := make([]model.Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Active {
			active = append(active, rule)
		}
	}
	return Sort(active)
}

// Sort returns a copy of rules ordered by priority descending, then creation
// time, then input order. Inactive rules are kept.
func Sort(rules []model.Rule) []model.Rule {
	sorted := make([]model.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// Match returns the first rule in rules that fires for comment. rules must
// already be in evaluation order.
func Match(comment string, rules []model.Rule) (*model.Rule, bool) {
	for i := range rules {
		if Matches(comment, &rules[i]) {
			return &rules[i], true
		}
	}
	return nil, false
}

// Matches evaluates a single rule. Keywords and exclusions match
// case-insensitively, except in exact mode where the trimmed comment must
// equal a keyword as written.
func Matches(comment string, rule *model.Rule) bool {
	if !rule.Active || len(rule.Keywords) == 0 {
		return false
	}
	text := strings.ToLower(comment)

	for _, exclude := range rule.ExcludeKeywords {
		exclude = strings.ToLower(strings.TrimSpace(exclude))
		if exclude != "" && strings.Contains(text, exclude) {
			return false
		}
	}

	switch rule.MatchMode {
	case model.MatchModeAll:
		for _, keyword := range rule.Keywords {
			if !strings.Contains(text, normalize(keyword)) {
				return false
			}
		}
		return true
	case model.MatchModeExact:
		trimmed := strings.TrimSpace(comment)
		for _, keyword := range rule.Keywords {
			if k := strings.TrimSpace(keyword); k != "" && trimmed == k {
				return true
			}
		}
		return false
	default:
		for _, keyword := range rule.Keywords {
			if k := normalize(keyword); k != "" && strings.Contains(text, k) {
				return true
			}
		}
		return false
	}
}

func normalize(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}
