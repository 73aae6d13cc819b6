package migrate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/open-feature/flagmigrate/pkg/model"
	"github.com/open-feature/flagmigrate/pkg/store"
)

type patchCall struct {
	Project string
	Flag    string
	Plan    model.PatchPlan
	Comment string
}

// recordingClient wraps the in-memory service, records writes and can be told
// to fail the next calls for a flag.
type recordingClient struct {
	*store.State

	mu          sync.Mutex
	lookups     []string
	creates     []string
	patches     []patchCall
	getFlagErrs map[string][]error
	createErrs  map[string][]error
	patchErrs   map[string][]error
}

func newRecordingClient(s *store.State) *recordingClient {
	return &recordingClient{
		State:       s,
		getFlagErrs: map[string][]error{},
		createErrs:  map[string][]error{},
		patchErrs:   map[string][]error{},
	}
}

func (c *recordingClient) next(queue map[string][]error, key string) error {
	errs := queue[key]
	if len(errs) == 0 {
		return nil
	}
	queue[key] = errs[1:]
	return errs[0]
}

func (c *recordingClient) GetFlag(ctx context.Context, projectKey string, flagKey string) (model.FeatureFlag, error) {
	c.mu.Lock()
	c.lookups = append(c.lookups, flagKey)
	err := c.next(c.getFlagErrs, flagKey)
	c.mu.Unlock()
	if err != nil {
		return model.FeatureFlag{}, err
	}
	return c.State.GetFlag(ctx, projectKey, flagKey)
}

func (c *recordingClient) CreateFlag(ctx context.Context, projectKey string, payload model.FlagCreatePayload) (model.FeatureFlag, error) {
	c.mu.Lock()
	err := c.next(c.createErrs, payload.Key)
	if err == nil {
		c.creates = append(c.creates, payload.Key)
	}
	c.mu.Unlock()
	if err != nil {
		return model.FeatureFlag{}, err
	}
	return c.State.CreateFlag(ctx, projectKey, payload)
}

func (c *recordingClient) PatchFlag(ctx context.Context, projectKey string, flagKey string, plan model.PatchPlan, comment string) (model.FeatureFlag, error) {
	c.mu.Lock()
	err := c.next(c.patchErrs, flagKey)
	if err == nil {
		c.patches = append(c.patches, patchCall{Project: projectKey, Flag: flagKey, Plan: plan, Comment: comment})
	}
	c.mu.Unlock()
	if err != nil {
		return model.FeatureFlag{}, err
	}
	return c.State.PatchFlag(ctx, projectKey, flagKey, plan, comment)
}

func (c *recordingClient) Creates() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.creates...)
}

func (c *recordingClient) Patches() []patchCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]patchCall{}, c.patches...)
}

func intPtr(v int) *int {
	return &v
}

// newScenario sets up source project p1 [prod, staging] and destination p2
// [prod, qa]. Flag new-checkout has rule r1 (clause c1) in prod and an empty
// configuration in staging.
func newScenario(t *testing.T) (*store.State, *recordingClient) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s := store.NewState(logger)

	s.PutProject(model.Project{
		Key:  "p1",
		Name: "Project One",
		Environments: []model.Environment{
			{Key: "prod", Name: "Production"},
			{Key: "staging", Name: "Staging"},
		},
	})
	s.PutProject(model.Project{
		Key:  "p2",
		Name: "Project Two",
		Environments: []model.Environment{
			{Key: "prod", Name: "Production"},
			{Key: "qa", Name: "QA"},
		},
	})

	err := s.PutFlag("p1", model.FeatureFlag{
		Key:         "new-checkout",
		Name:        "New checkout",
		Description: "checkout rewrite",
		Variations:  []model.Variation{{ID: "v1", Value: true}, {ID: "v2", Value: false}},
		Tags:        []string{"checkout"},
		Defaults:    &model.Defaults{OnVariation: 0, OffVariation: 1},
		Environments: map[string]model.EnvironmentConfig{
			"prod": {
				On: true,
				Rules: []model.Rule{{
					ID:        "r1",
					Variation: intPtr(0),
					Clauses:   []model.Clause{{ID: "c1", Attribute: "segment", Op: "in", Values: []any{"beta"}}},
				}},
			},
			"staging": {},
		},
	})
	if err != nil {
		t.Fatalf("seeding source flag: %v", err)
	}

	return s, newRecordingClient(s)
}

func newTestMigrator(c *recordingClient, cfg Config) *Migrator {
	logger, _ := test.NewNullLogger()
	cfg.Retry = RetryPolicy{MaxRetries: cfg.Retry.MaxRetries, Interval: time.Millisecond, CallTimeout: time.Second}
	return NewMigrator(c, cfg, logger)
}
