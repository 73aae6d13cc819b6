package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"

	"github.com/open-feature/flagmigrate/pkg/model"
)

const (
	projectsTable = "projects"
	flagsTable    = "flags"
)

type projectRecord struct {
	Key     string
	Project model.Project
}

type flagRecord struct {
	Project string
	Key     string
	Flag    model.FeatureFlag
}

// State is an in-memory flag service. It implements the same operations as
// the REST client, so it backs the sandbox server and stands in for the real
// service in tests.
type State struct {
	mx      sync.Mutex // serializes read-modify-write of flags
	db      *memdb.MemDB
	logger  log.FieldLogger
	history map[string][]model.PatchComment
}

func NewState(logger log.FieldLogger) *State {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			projectsTable: {
				Name: projectsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
				},
			},
			flagsTable: {
				Name: flagsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Project"},
								&memdb.StringFieldIndex{Field: "Key"},
							},
							AllowMissing: false,
						},
					},
					"project": {
						Name:    "project",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "Project"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}

	return &State{
		db:      db,
		logger:  logger,
		history: map[string][]model.PatchComment{},
	}
}

// PutProject inserts or replaces a project. Flags of the project are not touched.
func (s *State) PutProject(project model.Project) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(projectsTable, projectRecord{Key: project.Key, Project: project}); err != nil {
		panic(err)
	}
	txn.Commit()
}

// PutFlag inserts or replaces a flag as is, keeping its identifiers.
func (s *State) PutFlag(projectKey string, flag model.FeatureFlag) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	txn := s.db.Txn(true)
	defer txn.Abort()

	if _, ok := s.project(txn, projectKey); !ok {
		return model.NewError(model.KindNotFound, "project %s", projectKey)
	}
	if err := txn.Insert(flagsTable, flagRecord{Project: projectKey, Key: flag.Key, Flag: cloneFlag(flag)}); err != nil {
		return fmt.Errorf("unable to insert flag %s: %w", flag.Key, err)
	}
	txn.Commit()
	return nil
}

func (s *State) GetProject(_ context.Context, key string) (model.Project, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	project, ok := s.project(txn, key)
	if !ok {
		return model.Project{}, model.NewError(model.KindNotFound, "project %s", key)
	}
	return project, nil
}

func (s *State) ListFlags(_ context.Context, projectKey string) ([]model.FeatureFlag, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	if _, ok := s.project(txn, projectKey); !ok {
		return nil, model.NewError(model.KindNotFound, "project %s", projectKey)
	}

	it, err := txn.Get(flagsTable, "project", projectKey)
	if err != nil {
		panic(err)
	}

	flags := []model.FeatureFlag{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		flags = append(flags, cloneFlag(obj.(flagRecord).Flag))
	}
	return flags, nil
}

func (s *State) GetFlag(_ context.Context, projectKey string, flagKey string) (model.FeatureFlag, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	record, ok := s.flag(txn, projectKey, flagKey)
	if !ok {
		return model.FeatureFlag{}, model.NewError(model.KindNotFound, "flag %s in project %s", flagKey, projectKey)
	}
	return cloneFlag(record.Flag), nil
}

// CreateFlag creates a flag with an empty configuration in every environment
// of the project.
func (s *State) CreateFlag(_ context.Context, projectKey string, payload model.FlagCreatePayload) (model.FeatureFlag, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	txn := s.db.Txn(true)
	defer txn.Abort()

	project, ok := s.project(txn, projectKey)
	if !ok {
		return model.FeatureFlag{}, model.NewError(model.KindNotFound, "project %s", projectKey)
	}
	if payload.Key == "" || payload.Name == "" {
		return model.FeatureFlag{}, model.NewError(model.KindValidation, "flag key and name are required")
	}
	if _, exists := s.flag(txn, projectKey, payload.Key); exists {
		return model.FeatureFlag{}, model.NewError(model.KindConflict, "flag %s already exists in project %s", payload.Key, projectKey)
	}

	flag := model.FeatureFlag{
		Key:                    payload.Key,
		Name:                   payload.Name,
		Description:            payload.Description,
		Variations:             payload.Variations,
		Temporary:              payload.Temporary,
		Tags:                   payload.Tags,
		Defaults:               payload.Defaults,
		IncludeInSnippet:       payload.IncludeInSnippet,
		ClientSideAvailability: payload.ClientSideAvailability,
	}
	if flag.ClientSideAvailability == nil {
		flag.ClientSideAvailability = &model.ClientSideAvailability{UsingEnvironmentID: payload.IncludeInSnippet}
	}
	flag = cloneFlag(flag)
	flag.Environments = make(map[string]model.EnvironmentConfig, len(project.Environments))
	for i := range flag.Variations {
		flag.Variations[i].ID = xid.New().String()
	}
	for _, env := range project.Environments {
		flag.Environments[env.Key] = model.EnvironmentConfig{}
	}

	if err := txn.Insert(flagsTable, flagRecord{Project: projectKey, Key: flag.Key, Flag: flag}); err != nil {
		return model.FeatureFlag{}, fmt.Errorf("unable to insert flag %s: %w", flag.Key, err)
	}
	txn.Commit()

	s.logger.WithField("project", projectKey).Debugf("created flag %s", flag.Key)
	return cloneFlag(flag), nil
}

// PatchFlag applies all operations of the plan or none of them. Missing rule,
// clause and prerequisite ids are assigned; a supplied id that is already used
// elsewhere in the same environment is rejected.
func (s *State) PatchFlag(_ context.Context, projectKey string, flagKey string, plan model.PatchPlan, comment string) (model.FeatureFlag, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	txn := s.db.Txn(true)
	defer txn.Abort()

	record, ok := s.flag(txn, projectKey, flagKey)
	if !ok {
		return model.FeatureFlag{}, model.NewError(model.KindNotFound, "flag %s in project %s", flagKey, projectKey)
	}
	if plan.Empty() {
		return model.FeatureFlag{}, model.NewError(model.KindValidation, "empty patch")
	}

	flag := cloneFlag(record.Flag)
	if flag.Environments == nil {
		flag.Environments = map[string]model.EnvironmentConfig{}
	}
	touched := map[string]bool{}
	for _, op := range plan {
		envKey, err := applyOperation(&flag, op)
		if err != nil {
			return model.FeatureFlag{}, err
		}
		touched[envKey] = true
	}
	for envKey := range touched {
		config := flag.Environments[envKey]
		if err := assignIdentifiers(&config); err != nil {
			return model.FeatureFlag{}, fmt.Errorf("environment %s: %w", envKey, err)
		}
		flag.Environments[envKey] = config
	}

	if err := txn.Insert(flagsTable, flagRecord{Project: projectKey, Key: flagKey, Flag: flag}); err != nil {
		return model.FeatureFlag{}, fmt.Errorf("unable to update flag %s: %w", flagKey, err)
	}
	txn.Commit()

	id := historyKey(projectKey, flagKey)
	s.history[id] = append(s.history[id], model.PatchComment{Comment: comment, Patch: plan})
	s.logger.WithField("project", projectKey).Debugf("patched flag %s: %s", flagKey, comment)

	return cloneFlag(flag), nil
}

// History returns the patches applied to a flag, oldest first.
func (s *State) History(projectKey string, flagKey string) []model.PatchComment {
	s.mx.Lock()
	defer s.mx.Unlock()

	h := s.history[historyKey(projectKey, flagKey)]
	out := make([]model.PatchComment, len(h))
	copy(out, h)
	return out
}

func historyKey(projectKey string, flagKey string) string {
	return projectKey + "/" + flagKey
}

func (s *State) project(txn *memdb.Txn, key string) (model.Project, bool) {
	raw, err := txn.First(projectsTable, "id", key)
	if err != nil {
		panic(err)
	}
	record, ok := raw.(projectRecord)
	if !ok {
		return model.Project{}, false
	}
	return record.Project, true
}

func (s *State) flag(txn *memdb.Txn, projectKey string, flagKey string) (flagRecord, bool) {
	raw, err := txn.First(flagsTable, "id", projectKey, flagKey)
	if err != nil {
		panic(err)
	}
	record, ok := raw.(flagRecord)
	return record, ok
}

func applyOperation(flag *model.FeatureFlag, op model.PatchOperation) (string, error) {
	if op.Op != model.OpReplace {
		return "", model.NewError(model.KindValidation, "unsupported patch operation %q", op.Op)
	}
	parts := strings.Split(strings.TrimPrefix(op.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "environments" {
		return "", model.NewError(model.KindValidation, "unsupported patch path %q", op.Path)
	}
	envKey, field := parts[1], parts[2]
	config, ok := flag.Environments[envKey]
	if !ok {
		return "", model.NewError(model.KindValidation, "unknown environment %q", envKey)
	}

	var err error
	switch field {
	case model.FieldTargets:
		config.Targets = nil
		err = convert(op.Value, &config.Targets)
	case model.FieldRules:
		config.Rules = nil
		err = convert(op.Value, &config.Rules)
	case model.FieldPrerequisites:
		config.Prerequisites = nil
		err = convert(op.Value, &config.Prerequisites)
	default:
		return "", model.NewError(model.KindValidation, "unsupported patch path %q", op.Path)
	}
	if err != nil {
		return "", model.NewError(model.KindValidation, "invalid value for %s: %v", op.Path, err)
	}

	flag.Environments[envKey] = config
	return envKey, nil
}

// convert decodes a patch value, which may be typed or generic JSON, into out.
func convert(value any, out any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func assignIdentifiers(config *model.EnvironmentConfig) error {
	seen := map[string]bool{}
	claim := func(id *string) error {
		if *id == "" {
			*id = xid.New().String()
			return nil
		}
		if seen[*id] {
			return model.NewError(model.KindValidation, "duplicate id %q", *id)
		}
		seen[*id] = true
		return nil
	}

	for i := range config.Rules {
		if err := claim(&config.Rules[i].ID); err != nil {
			return err
		}
		for j := range config.Rules[i].Clauses {
			if err := claim(&config.Rules[i].Clauses[j].ID); err != nil {
				return err
			}
		}
	}
	for i := range config.Prerequisites {
		if err := claim(&config.Prerequisites[i].ID); err != nil {
			return err
		}
		for j := range config.Prerequisites[i].Clauses {
			if err := claim(&config.Prerequisites[i].Clauses[j].ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// cloneFlag returns a deep copy, the same way the flag would look after a
// round trip through the REST API.
func cloneFlag(flag model.FeatureFlag) model.FeatureFlag {
	b, err := json.Marshal(flag)
	if err != nil {
		panic(err)
	}
	var out model.FeatureFlag
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}
