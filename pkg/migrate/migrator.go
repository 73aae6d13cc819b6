package migrate

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/open-feature/flagmigrate/pkg/client"
	"github.com/open-feature/flagmigrate/pkg/model"
)

const DefaultWorkers = 4

type Config struct {
	Workers int
	Retry   RetryPolicy
	// DryRun resolves existence and builds every plan but issues no writes.
	DryRun bool
	// SkipUnchanged drops patch operations whose value the destination
	// already holds.
	SkipUnchanged bool
}

// Migrator copies flags from one project to another.
type Migrator struct {
	client   client.IClient
	resolver *Resolver
	call     caller
	cfg      Config
	logger   log.FieldLogger
}

func NewMigrator(c client.IClient, cfg Config, logger log.FieldLogger) *Migrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Migrator{
		client:   c,
		resolver: NewResolver(c, cfg.Retry),
		call:     caller{policy: cfg.Retry},
		cfg:      cfg,
		logger:   logger,
	}
}

// Run loads both projects and the full source flag listing, then migrates
// every flag.
func (m *Migrator) Run(ctx context.Context, sourceKey string, destinationKey string) (*Report, error) {
	source, err := m.project(ctx, sourceKey)
	if err != nil {
		return nil, err
	}
	destination, err := m.project(ctx, destinationKey)
	if err != nil {
		return nil, err
	}

	var flags []model.FeatureFlag
	err = m.call.do(ctx, func(ctx context.Context) error {
		var err error
		flags, err = m.client.ListFlags(ctx, source.Key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list source flags: %w", err)
	}

	m.logger.Infof("found %d flag(s) in project '%s'", len(flags), displayName(source))
	return m.Migrate(ctx, source, destination, flags)
}

func (m *Migrator) project(ctx context.Context, key string) (model.Project, error) {
	var project model.Project
	err := m.call.do(ctx, func(ctx context.Context) error {
		var err error
		project, err = m.client.GetProject(ctx, key)
		return err
	})
	if err != nil {
		return model.Project{}, fmt.Errorf("unable to load project %s: %w", key, err)
	}
	return project, nil
}

// Migrate processes flags on a bounded pool of workers. A failing flag is
// recorded and does not stop the others. An authentication failure stops
// scheduling and is returned; so is cancellation of ctx. In both cases flags
// already in flight run to completion and the flags never started are
// reported as skipped.
func (m *Migrator) Migrate(ctx context.Context, source model.Project, destination model.Project, flags []model.FeatureFlag) (*Report, error) {
	report := &Report{
		Source:      source.Key,
		Destination: destination.Key,
		DryRun:      m.cfg.DryRun,
		Results:     make([]FlagResult, len(flags)),
	}
	for i, flag := range flags {
		report.Results[i] = FlagResult{Key: flag.Key, Outcome: OutcomeSkipped}
	}

	environments := MatchingEnvironments(source.EnvironmentKeys(), destination.EnvironmentKeys())
	m.logger.Debugf("environments shared by '%s' and '%s': %v", source.Key, destination.Key, environments)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	// cancellation stops scheduling only, a started flag is never left half done
	work := context.WithoutCancel(gctx)

	for i := range flags {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result := m.migrateFlag(work, source, destination, environments, flags[i])
			report.Results[i] = result
			if result.Outcome == OutcomeFailed && model.IsFatal(result.Err) {
				return result.Err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("migration aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("migration cancelled: %w", err)
	}
	return report, nil
}

func (m *Migrator) migrateFlag(ctx context.Context, source model.Project, destination model.Project, environments []string, flag model.FeatureFlag) FlagResult {
	logger := m.logger.WithFields(log.Fields{"flag": flag.Key, "project": destination.Key})
	result := FlagResult{Key: flag.Key}
	payload := NewCreatePayload(flag)

	logger.Infof("Creating '%s' in project '%s'...", payload.Name, displayName(destination))

	var current model.FeatureFlag
	existence := m.resolver.Resolve(ctx, destination.Key, flag.Key)
	switch existence.State {
	case Failed:
		return m.fail(logger, result, fmt.Errorf("unable to look up flag at destination: %w", existence.Err))
	case Found:
		logger.Debug("flag already exists at destination, not creating it")
		result.Outcome = OutcomeExisted
		current = existence.Flag
	case Absent:
		result.Outcome = OutcomeCreated
		result.Created = true
		if m.cfg.DryRun {
			break
		}
		created, err := m.create(ctx, destination.Key, payload)
		switch {
		case model.KindOf(err) == model.KindConflict:
			// created by another writer since the lookup
			logger.Warn("flag appeared at destination after lookup, not creating it")
			result.Outcome = OutcomeExisted
			result.Created = false
		case err != nil:
			result.Created = false
			return m.fail(logger, result, fmt.Errorf("unable to create flag: %w", err))
		default:
			current = created
		}
	}

	comment := fmt.Sprintf("updating rules from prior project '%s'", displayName(source))
	var errs []error
	for _, envKey := range environments {
		envLogger := logger.WithField("env", envKey)

		plan := BuildPlan(envKey, flag.Environments[envKey])
		if m.cfg.SkipUnchanged {
			if config, ok := current.Environments[envKey]; ok {
				plan = PruneUnchanged(plan, envKey, config)
			}
		}
		if plan.Empty() {
			envLogger.Debug("nothing to patch")
			continue
		}

		envLogger.Infof("Updating rules for flag '%s' in project '%s'", payload.Name, displayName(destination))
		envLogger.Debugf("patch paths: %v", plan.Paths())
		if !m.cfg.DryRun {
			if err := m.patch(ctx, destination.Key, flag.Key, plan, comment); err != nil {
				err = fmt.Errorf("unable to patch environment %s: %w", envKey, err)
				if model.IsFatal(err) {
					return m.fail(logger, result, err)
				}
				envLogger.Warn(err)
				errs = append(errs, err)
				continue
			}
		}
		result.PatchedEnvironments = append(result.PatchedEnvironments, envKey)
	}

	if len(errs) > 0 {
		return m.fail(logger, result, errors.Join(errs...))
	}
	return result
}

func (m *Migrator) fail(logger log.FieldLogger, result FlagResult, err error) FlagResult {
	logger.WithError(err).Error("flag migration failed")
	result.Outcome = OutcomeFailed
	result.Err = err
	return result
}

func (m *Migrator) create(ctx context.Context, projectKey string, payload model.FlagCreatePayload) (model.FeatureFlag, error) {
	var flag model.FeatureFlag
	err := m.call.do(ctx, func(ctx context.Context) error {
		var err error
		flag, err = m.client.CreateFlag(ctx, projectKey, payload)
		return err
	})
	return flag, err
}

func (m *Migrator) patch(ctx context.Context, projectKey string, flagKey string, plan model.PatchPlan, comment string) error {
	return m.call.do(ctx, func(ctx context.Context) error {
		_, err := m.client.PatchFlag(ctx, projectKey, flagKey, plan, comment)
		return err
	})
}

func displayName(project model.Project) string {
	if project.Name != "" {
		return project.Name
	}
	return project.Key
}
