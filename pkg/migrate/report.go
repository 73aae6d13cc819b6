package migrate

import (
	"fmt"
	"io"
	"strings"
)

type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeCreated
	OutcomeExisted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExisted:
		return "already-existed"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// FlagResult is the outcome of migrating one flag. A failed flag may still
// have been created and partially patched before the failure.
type FlagResult struct {
	Key                 string
	Outcome             Outcome
	Created             bool
	PatchedEnvironments []string
	Err                 error
}

type Stats struct {
	Flags   int
	Created int
	Existed int
	Patched int
	Skipped int
	Failed  int
}

// Report holds one result per source flag, in source listing order.
type Report struct {
	Source      string
	Destination string
	DryRun      bool
	Results     []FlagResult
}

func (r *Report) Created() []string {
	return r.keys(func(res FlagResult) bool { return res.Created })
}

func (r *Report) Existed() []string {
	return r.keys(func(res FlagResult) bool { return res.Outcome == OutcomeExisted })
}

func (r *Report) Patched() []string {
	return r.keys(func(res FlagResult) bool { return len(res.PatchedEnvironments) > 0 })
}

func (r *Report) Skipped() []string {
	return r.keys(func(res FlagResult) bool { return res.Outcome == OutcomeSkipped })
}

func (r *Report) Failed() []string {
	return r.keys(func(res FlagResult) bool { return res.Outcome == OutcomeFailed })
}

func (r *Report) HasFailures() bool {
	return len(r.Failed()) > 0
}

// Result returns the result recorded for a flag key.
func (r *Report) Result(key string) (FlagResult, bool) {
	for _, res := range r.Results {
		if res.Key == key {
			return res, true
		}
	}
	return FlagResult{}, false
}

func (r *Report) Stats() Stats {
	return Stats{
		Flags:   len(r.Results),
		Created: len(r.Created()),
		Existed: len(r.Existed()),
		Patched: len(r.Patched()),
		Skipped: len(r.Skipped()),
		Failed:  len(r.Failed()),
	}
}

func (r *Report) keys(match func(FlagResult) bool) []string {
	keys := []string{}
	for _, res := range r.Results {
		if match(res) {
			keys = append(keys, res.Key)
		}
	}
	return keys
}

// WriteSummary prints a human readable summary of the run.
func (r *Report) WriteSummary(w io.Writer) error {
	var b strings.Builder

	header := fmt.Sprintf("Migrated %d flag(s) from project '%s' to '%s'", len(r.Results), r.Source, r.Destination)
	if r.DryRun {
		header += " (dry run, nothing was written)"
	}
	b.WriteString(header + "\n")

	section := func(title string, keys []string) {
		fmt.Fprintf(&b, "  %-16s %d", title+":", len(keys))
		if len(keys) > 0 {
			fmt.Fprintf(&b, "  %s", strings.Join(keys, ", "))
		}
		b.WriteString("\n")
	}
	created := []string{}
	for _, res := range r.Results {
		switch {
		case res.Created && res.Outcome == OutcomeFailed:
			created = append(created, res.Key+" (failed)")
		case res.Created:
			created = append(created, res.Key)
		}
	}
	section("created", created)
	section("already existed", r.Existed())

	patched := []string{}
	for _, res := range r.Results {
		if len(res.PatchedEnvironments) > 0 {
			patched = append(patched, fmt.Sprintf("%s [%s]", res.Key, strings.Join(res.PatchedEnvironments, " ")))
		}
	}
	section("patched", patched)
	section("skipped", r.Skipped())
	section("failed", r.Failed())

	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed && res.Err != nil {
			fmt.Fprintf(&b, "    %s: %v\n", res.Key, res.Err)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
