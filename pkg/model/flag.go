package model

type Variation struct {
	ID          string `json:"_id,omitempty"`
	Value       any    `json:"value"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type Defaults struct {
	OnVariation  int `json:"onVariation"`
	OffVariation int `json:"offVariation"`
}

type ClientSideAvailability struct {
	UsingEnvironmentID bool `json:"usingEnvironmentId"`
	UsingMobileKey     bool `json:"usingMobileKey"`
}

// FeatureFlag is a flag as returned by the service, including the
// targeting configuration of every environment of its project.
type FeatureFlag struct {
	Key                    string                       `json:"key"`
	Name                   string                       `json:"name"`
	Description            string                       `json:"description,omitempty"`
	Kind                   string                       `json:"kind,omitempty"`
	Variations             []Variation                  `json:"variations"`
	Temporary              bool                         `json:"temporary"`
	Tags                   []string                     `json:"tags"`
	Defaults               *Defaults                    `json:"defaults,omitempty"`
	IncludeInSnippet       bool                         `json:"includeInSnippet"`
	ClientSideAvailability *ClientSideAvailability      `json:"clientSideAvailability,omitempty"`
	Environments           map[string]EnvironmentConfig `json:"environments,omitempty"`
}

type EnvironmentConfig struct {
	On            bool           `json:"on"`
	Targets       []Target       `json:"targets,omitempty"`
	Rules         []Rule         `json:"rules,omitempty"`
	Prerequisites []Prerequisite `json:"prerequisites,omitempty"`
}

type Target struct {
	Values    []string `json:"values"`
	Variation int      `json:"variation"`
}

type Rule struct {
	ID          string   `json:"_id,omitempty"`
	Description string   `json:"description,omitempty"`
	Clauses     []Clause `json:"clauses"`
	Variation   *int     `json:"variation,omitempty"`
	Rollout     *Rollout `json:"rollout,omitempty"`
	TrackEvents bool     `json:"trackEvents"`
}

type Rollout struct {
	Variations []WeightedVariation `json:"variations"`
	BucketBy   string              `json:"bucketBy,omitempty"`
}

type WeightedVariation struct {
	Variation int `json:"variation"`
	Weight    int `json:"weight"`
}

type Prerequisite struct {
	ID        string   `json:"_id,omitempty"`
	Key       string   `json:"key"`
	Variation int      `json:"variation"`
	Clauses   []Clause `json:"clauses,omitempty"`
}

// Clause ids are assigned by the service and are only unique within the
// environment that owns them.
type Clause struct {
	ID        string `json:"_id,omitempty"`
	Attribute string `json:"attribute"`
	Op        string `json:"op"`
	Values    []any  `json:"values"`
	Negate    bool   `json:"negate"`
}

// FlagCreatePayload is the body of a flag creation request. It never carries
// environment scoped data.
type FlagCreatePayload struct {
	Name                   string                  `json:"name"`
	Key                    string                  `json:"key"`
	Description            string                  `json:"description,omitempty"`
	Variations             []Variation             `json:"variations"`
	Temporary              bool                    `json:"temporary"`
	Tags                   []string                `json:"tags"`
	Defaults               *Defaults               `json:"defaults,omitempty"`
	IncludeInSnippet       bool                    `json:"includeInSnippet,omitempty"`
	ClientSideAvailability *ClientSideAvailability `json:"clientSideAvailability,omitempty"`
}

type FlagList struct {
	Items []FeatureFlag `json:"items"`
}
