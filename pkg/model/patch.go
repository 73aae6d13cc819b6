package model

import "fmt"

const OpReplace = "replace"

const (
	FieldTargets       = "targets"
	FieldRules         = "rules"
	FieldPrerequisites = "prerequisites"
)

// PatchOperation is a single JSON patch operation against a flag document.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// PatchPlan is applied atomically against one flag.
type PatchPlan []PatchOperation

func (p PatchPlan) Empty() bool {
	return len(p) == 0
}

// Paths returns the document paths touched by the plan, in order.
func (p PatchPlan) Paths() []string {
	paths := make([]string, 0, len(p))
	for _, op := range p {
		paths = append(paths, op.Path)
	}
	return paths
}

// PatchComment is the body of a flag patch request.
type PatchComment struct {
	Comment string    `json:"comment,omitempty"`
	Patch   PatchPlan `json:"patch"`
}

// EnvironmentPath returns the JSON pointer of an environment scoped field of a flag.
func EnvironmentPath(envKey string, field string) string {
	return fmt.Sprintf("/environments/%s/%s", envKey, field)
}
