package migrate

import (
	"slices"

	"github.com/open-feature/flagmigrate/pkg/model"
)

// SanitizeRules returns a copy of the rules with the rule and clause ids
// cleared. The destination assigns its own ids; the input is left untouched
// since the same source flag is reused for every destination environment.
func SanitizeRules(rules []model.Rule) []model.Rule {
	if rules == nil {
		return nil
	}
	out := make([]model.Rule, len(rules))
	for i, rule := range rules {
		rule.ID = ""
		rule.Clauses = sanitizeClauses(rule.Clauses)
		if rule.Variation != nil {
			v := *rule.Variation
			rule.Variation = &v
		}
		if rule.Rollout != nil {
			rollout := *rule.Rollout
			rollout.Variations = slices.Clone(rollout.Variations)
			rule.Rollout = &rollout
		}
		out[i] = rule
	}
	return out
}

// SanitizePrerequisites is SanitizeRules for prerequisites.
func SanitizePrerequisites(prerequisites []model.Prerequisite) []model.Prerequisite {
	if prerequisites == nil {
		return nil
	}
	out := make([]model.Prerequisite, len(prerequisites))
	for i, prerequisite := range prerequisites {
		prerequisite.ID = ""
		prerequisite.Clauses = sanitizeClauses(prerequisite.Clauses)
		out[i] = prerequisite
	}
	return out
}

func sanitizeClauses(clauses []model.Clause) []model.Clause {
	if clauses == nil {
		return nil
	}
	out := make([]model.Clause, len(clauses))
	for i, clause := range clauses {
		clause.ID = ""
		clause.Values = slices.Clone(clause.Values)
		out[i] = clause
	}
	return out
}
