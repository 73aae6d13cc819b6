package model

type Project struct {
	Key          string        `json:"key"`
	Name         string        `json:"name"`
	Environments []Environment `json:"environments"`
}

type Environment struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// EnvironmentKeys returns the keys of the project's environments in declaration order.
func (p Project) EnvironmentKeys() []string {
	keys := make([]string, 0, len(p.Environments))
	for _, env := range p.Environments {
		keys = append(keys, env.Key)
	}
	return keys
}

// HasEnvironment reports whether the project declares an environment with the given key.
func (p Project) HasEnvironment(key string) bool {
	for _, env := range p.Environments {
		if env.Key == key {
			return true
		}
	}
	return false
}
