package migrate

import "sort"

// MatchingEnvironments returns the environment keys present in both projects,
// sorted so that logs and patch submission order are reproducible.
func MatchingEnvironments(source []string, destination []string) []string {
	present := make(map[string]struct{}, len(destination))
	for _, key := range destination {
		present[key] = struct{}{}
	}

	matching := []string{}
	seen := map[string]struct{}{}
	for _, key := range source {
		if _, ok := present[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		matching = append(matching, key)
	}
	sort.Strings(matching)
	return matching
}
