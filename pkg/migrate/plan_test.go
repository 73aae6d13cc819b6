package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-feature/flagmigrate/pkg/model"
)

func fullConfig() model.EnvironmentConfig {
	return model.EnvironmentConfig{
		On:      true,
		Targets: []model.Target{{Values: []string{"user-1", "user-2"}, Variation: 1}},
		Rules: []model.Rule{
			{
				ID:        "r1",
				Variation: intPtr(0),
				Clauses: []model.Clause{
					{ID: "c1", Attribute: "country", Op: "in", Values: []any{"NL", "BE"}},
					{ID: "c2", Attribute: "plan", Op: "in", Values: []any{"pro"}, Negate: true},
				},
			},
			{
				ID:      "r2",
				Rollout: &model.Rollout{Variations: []model.WeightedVariation{{Variation: 0, Weight: 50000}, {Variation: 1, Weight: 50000}}},
				Clauses: []model.Clause{{ID: "c3", Attribute: "email", Op: "endsWith", Values: []any{"@example.com"}}},
			},
		},
		Prerequisites: []model.Prerequisite{
			{ID: "p1", Key: "base-flag", Variation: 0, Clauses: []model.Clause{{ID: "c4", Attribute: "key", Op: "in", Values: []any{"x"}}}},
		},
	}
}

func TestMatchingEnvironments_Intersection(t *testing.T) {
	assert.Equal(t, []string{"prod"}, MatchingEnvironments([]string{"prod", "staging"}, []string{"qa", "prod"}))
	assert.Equal(t, []string{"a", "b"}, MatchingEnvironments([]string{"b", "a", "b"}, []string{"a", "b", "c"}))
	assert.Empty(t, MatchingEnvironments([]string{"a"}, []string{"b"}))
	assert.Empty(t, MatchingEnvironments(nil, []string{"b"}))
	assert.Empty(t, MatchingEnvironments([]string{"a"}, nil))
}

func TestMatchingEnvironments_OrderIndependent(t *testing.T) {
	a := MatchingEnvironments([]string{"c", "b", "a"}, []string{"a", "c"})
	b := MatchingEnvironments([]string{"a", "b", "c"}, []string{"c", "a"})
	assert.Equal(t, a, b)
}

func TestBuildPlan_FullConfig_OrderedOperations(t *testing.T) {
	plan := BuildPlan("prod", fullConfig())

	assert.Equal(t, []string{
		"/environments/prod/targets",
		"/environments/prod/rules",
		"/environments/prod/prerequisites",
	}, plan.Paths())
	for _, op := range plan {
		assert.Equal(t, model.OpReplace, op.Op)
	}
	assert.Equal(t, fullConfig().Targets, plan[0].Value)
}

func TestBuildPlan_ClearsAllIdentifiers(t *testing.T) {
	plan := BuildPlan("prod", fullConfig())
	require.Len(t, plan, 3)

	rules := plan[1].Value.([]model.Rule)
	require.Len(t, rules, 2)
	for _, rule := range rules {
		assert.Empty(t, rule.ID)
		for _, clause := range rule.Clauses {
			assert.Empty(t, clause.ID)
		}
	}
	assert.Equal(t, "country", rules[0].Clauses[0].Attribute)
	assert.Equal(t, []any{"NL", "BE"}, rules[0].Clauses[0].Values)
	assert.True(t, rules[0].Clauses[1].Negate)
	assert.Equal(t, 0, *rules[0].Variation)
	assert.Equal(t, 50000, rules[1].Rollout.Variations[1].Weight)

	prerequisites := plan[2].Value.([]model.Prerequisite)
	require.Len(t, prerequisites, 1)
	assert.Empty(t, prerequisites[0].ID)
	assert.Empty(t, prerequisites[0].Clauses[0].ID)
	assert.Equal(t, "base-flag", prerequisites[0].Key)
}

func TestBuildPlan_EmptyConfig_EmptyPlan(t *testing.T) {
	plan := BuildPlan("staging", model.EnvironmentConfig{On: true})
	assert.True(t, plan.Empty())

	plan = BuildPlan("staging", model.EnvironmentConfig{Targets: []model.Target{}, Rules: []model.Rule{}})
	assert.True(t, plan.Empty())
}

func TestBuildPlan_OnlyNonEmptyCollections(t *testing.T) {
	config := fullConfig()
	config.Targets = nil
	config.Prerequisites = nil

	plan := BuildPlan("qa", config)
	assert.Equal(t, []string{"/environments/qa/rules"}, plan.Paths())
}

func TestBuildPlan_SameFlagTwoEnvironments_SourceUntouched(t *testing.T) {
	config := fullConfig()

	planX := BuildPlan("x", config)
	// tamper with the first plan's values
	rulesX := planX[1].Value.([]model.Rule)
	rulesX[0].Clauses[0].ID = "tampered"
	rulesX[0].Clauses[0].Values[0] = "tampered"
	*rulesX[0].Variation = 7

	assert.Equal(t, "r1", config.Rules[0].ID)
	assert.Equal(t, "c1", config.Rules[0].Clauses[0].ID)
	assert.Equal(t, "NL", config.Rules[0].Clauses[0].Values[0])
	assert.Equal(t, 0, *config.Rules[0].Variation)
	assert.Equal(t, "p1", config.Prerequisites[0].ID)
	assert.Equal(t, "c4", config.Prerequisites[0].Clauses[0].ID)

	planY := BuildPlan("y", config)
	rulesY := planY[1].Value.([]model.Rule)
	assert.Empty(t, rulesY[0].Clauses[0].ID)
	assert.Equal(t, "NL", rulesY[0].Clauses[0].Values[0])
	assert.Equal(t, 0, *rulesY[0].Variation)
}

func TestSanitize_Nil_Nil(t *testing.T) {
	assert.Nil(t, SanitizeRules(nil))
	assert.Nil(t, SanitizePrerequisites(nil))
}

func TestSanitizeRules_KeepsOtherFields(t *testing.T) {
	rules := []model.Rule{{ID: "r", Description: "beta users", TrackEvents: true, Clauses: []model.Clause{{ID: "c", Attribute: "a", Op: "in", Values: []any{1.0}}}}}

	out := SanitizeRules(rules)
	assert.Equal(t, []model.Rule{{Description: "beta users", TrackEvents: true, Clauses: []model.Clause{{Attribute: "a", Op: "in", Values: []any{1.0}}}}}, out)
}

func TestPruneUnchanged_DropsMatchingOperations(t *testing.T) {
	config := fullConfig()
	plan := BuildPlan("prod", config)

	// destination holds the same rules under its own ids, other targets, no prerequisites
	current := fullConfig()
	current.Rules[0].ID = "dest-r1"
	current.Rules[0].Clauses[0].ID = "dest-c1"
	current.Targets = []model.Target{{Values: []string{"someone-else"}}}
	current.Prerequisites = nil

	pruned := PruneUnchanged(plan, "prod", current)
	assert.Equal(t, []string{"/environments/prod/targets", "/environments/prod/prerequisites"}, pruned.Paths())

	assert.True(t, PruneUnchanged(plan, "prod", fullConfig()).Empty())
	assert.Len(t, PruneUnchanged(plan, "prod", model.EnvironmentConfig{}), 3)
}

func TestNewCreatePayload_CopiesDefinition(t *testing.T) {
	flag := model.FeatureFlag{
		Key:         "new-checkout",
		Name:        "New checkout",
		Description: "desc",
		Variations:  []model.Variation{{ID: "v1", Value: "a", Name: "A"}, {ID: "v2", Value: "b"}},
		Temporary:   true,
		Tags:        []string{"t1"},
		Defaults:    &model.Defaults{OnVariation: 1, OffVariation: 0},
		ClientSideAvailability: &model.ClientSideAvailability{
			UsingEnvironmentID: true,
			UsingMobileKey:     true,
		},
		Environments: map[string]model.EnvironmentConfig{"prod": fullConfig()},
	}

	payload := NewCreatePayload(flag)
	assert.Equal(t, model.FlagCreatePayload{
		Name:        "New checkout",
		Key:         "new-checkout",
		Description: "desc",
		Variations:  []model.Variation{{Value: "a", Name: "A"}, {Value: "b"}},
		Temporary:   true,
		Tags:        []string{"t1"},
		Defaults:    &model.Defaults{OnVariation: 1, OffVariation: 0},
		ClientSideAvailability: &model.ClientSideAvailability{
			UsingEnvironmentID: true,
			UsingMobileKey:     true,
		},
	}, payload)

	payload.Tags[0] = "changed"
	payload.Defaults.OnVariation = 5
	assert.Equal(t, "t1", flag.Tags[0])
	assert.Equal(t, 1, flag.Defaults.OnVariation)
	assert.Equal(t, "v1", flag.Variations[0].ID)
}

func TestNewCreatePayload_IncludeInSnippet_Preferred(t *testing.T) {
	flag := model.FeatureFlag{
		Key:                    "legacy",
		Name:                   "Legacy",
		IncludeInSnippet:       true,
		ClientSideAvailability: &model.ClientSideAvailability{UsingMobileKey: true},
	}

	payload := NewCreatePayload(flag)
	assert.True(t, payload.IncludeInSnippet)
	assert.Nil(t, payload.ClientSideAvailability)
}
