package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/open-feature/flagmigrate/pkg/model"
	"github.com/open-feature/flagmigrate/pkg/store"
)

// Fixture is the file format read by FilePathProvider.
type Fixture struct {
	Projects []FixtureProject `json:"projects"`
}

type FixtureProject struct {
	model.Project
	Flags []model.FeatureFlag `json:"flags"`
}

const fixtureSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["projects"],
  "properties": {
    "projects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "environments"],
        "properties": {
          "key": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "environments": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["key"],
              "properties": {
                "key": {"type": "string", "minLength": 1},
                "name": {"type": "string"}
              }
            }
          },
          "flags": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["key", "name", "variations"],
              "properties": {
                "key": {"type": "string", "minLength": 1},
                "name": {"type": "string"},
                "variations": {"type": "array", "minItems": 1},
                "tags": {"type": "array", "items": {"type": "string"}},
                "environments": {"type": "object"}
              }
            }
          }
        }
      }
    }
  }
}`

type FilePathProvider struct {
	URI    string
	Logger log.FieldLogger
}

func (fp *FilePathProvider) logger() log.FieldLogger {
	if fp.Logger == nil {
		return log.StandardLogger()
	}
	return fp.Logger
}

func (fp *FilePathProvider) Initialize(ctx context.Context, state *store.State) error {
	fixture, err := fp.parse()
	if err != nil {
		return err
	}
	if err := Load(state, fixture); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to watch %s: %w", fp.URI, err)
	}
	if err := watcher.Add(fp.URI); err != nil {
		watcher.Close()
		return fmt.Errorf("unable to watch %s: %w", fp.URI, err)
	}
	go fp.watch(ctx, watcher, state)

	return nil
}

func (fp *FilePathProvider) watch(ctx context.Context, watcher *fsnotify.Watcher, state *store.State) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fixture, err := fp.parse()
			if err != nil {
				// editors often write in several steps, the next event retries
				fp.logger().Warnf("ignoring fixture change: %v", err)
				continue
			}
			if err := Load(state, fixture); err != nil {
				fp.logger().Error(err)
				continue
			}
			fp.logger().Infof("fixture %s reloaded", fp.URI)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fp.logger().Errorf("fixture watcher: %v", err)
		}
	}
}

func (fp *FilePathProvider) parse() (Fixture, error) {
	if fp.URI == "" {
		return Fixture{}, errors.New("no filepath string set")
	}
	rawFile, err := os.ReadFile(fp.URI)
	if err != nil {
		return Fixture{}, fmt.Errorf("unable to read fixture: %w", err)
	}
	return ParseFixture(rawFile)
}

// ParseFixture validates raw against the fixture schema and decodes it.
func ParseFixture(raw []byte) (Fixture, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(fixtureSchema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Fixture{}, fmt.Errorf("unable to validate fixture: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return Fixture{}, fmt.Errorf("invalid fixture: %s", strings.Join(problems, "; "))
	}

	var fixture Fixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return Fixture{}, fmt.Errorf("unable to decode fixture: %w", err)
	}
	return fixture, nil
}

// Load upserts every project and flag of the fixture. Flags created in the
// store by other means are left alone.
func Load(state *store.State, fixture Fixture) error {
	for _, p := range fixture.Projects {
		state.PutProject(p.Project)
		for _, flag := range p.Flags {
			if err := state.PutFlag(p.Key, flag); err != nil {
				return fmt.Errorf("unable to load flag %s of project %s: %w", flag.Key, p.Key, err)
			}
		}
	}
	return nil
}
