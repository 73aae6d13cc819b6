package migrate

import (
	"reflect"

	"github.com/open-feature/flagmigrate/pkg/model"
)

// BuildPlan turns one environment's source configuration into replace
// operations, in the fixed order targets, rules, prerequisites. Empty
// collections produce no operation, so an empty configuration yields an empty
// plan and the destination's current state is left as is.
func BuildPlan(envKey string, config model.EnvironmentConfig) model.PatchPlan {
	plan := model.PatchPlan{}

	if len(config.Targets) > 0 {
		plan = append(plan, model.PatchOperation{
			Op:    model.OpReplace,
			Path:  model.EnvironmentPath(envKey, model.FieldTargets),
			Value: config.Targets,
		})
	}

	if len(config.Rules) > 0 {
		plan = append(plan, model.PatchOperation{
			Op:    model.OpReplace,
			Path:  model.EnvironmentPath(envKey, model.FieldRules),
			Value: SanitizeRules(config.Rules),
		})
	}

	if len(config.Prerequisites) > 0 {
		plan = append(plan, model.PatchOperation{
			Op:    model.OpReplace,
			Path:  model.EnvironmentPath(envKey, model.FieldPrerequisites),
			Value: SanitizePrerequisites(config.Prerequisites),
		})
	}

	return plan
}

// PruneUnchanged drops the operations of a plan built by BuildPlan whose value
// already matches the destination's current configuration, ids aside.
func PruneUnchanged(plan model.PatchPlan, envKey string, current model.EnvironmentConfig) model.PatchPlan {
	existing := map[string]any{
		model.EnvironmentPath(envKey, model.FieldTargets):       current.Targets,
		model.EnvironmentPath(envKey, model.FieldRules):         SanitizeRules(current.Rules),
		model.EnvironmentPath(envKey, model.FieldPrerequisites): SanitizePrerequisites(current.Prerequisites),
	}

	pruned := model.PatchPlan{}
	for _, op := range plan {
		if value, ok := existing[op.Path]; ok && reflect.DeepEqual(value, op.Value) {
			continue
		}
		pruned = append(pruned, op)
	}
	return pruned
}
