package migrate

import (
	"context"

	"github.com/open-feature/flagmigrate/pkg/client"
	"github.com/open-feature/flagmigrate/pkg/model"
)

type ExistenceState int

const (
	Absent ExistenceState = iota
	Found
	Failed
)

func (s ExistenceState) String() string {
	switch s {
	case Found:
		return "found"
	case Failed:
		return "failed"
	default:
		return "absent"
	}
}

// Existence is the outcome of a destination lookup. Flag is set when State is
// Found, Err when State is Failed.
type Existence struct {
	State ExistenceState
	Flag  model.FeatureFlag
	Err   error
}

// Resolver looks flags up at the destination. Only a not found answer means
// the flag is absent; any other failure is reported as such so an outage is
// never mistaken for a flag that needs creating.
type Resolver struct {
	client client.IClient
	call   caller
}

func NewResolver(c client.IClient, retry RetryPolicy) *Resolver {
	return &Resolver{client: c, call: caller{policy: retry}}
}

func (r *Resolver) Resolve(ctx context.Context, projectKey string, flagKey string) Existence {
	var flag model.FeatureFlag
	err := r.call.do(ctx, func(ctx context.Context) error {
		var err error
		flag, err = r.client.GetFlag(ctx, projectKey, flagKey)
		return err
	})
	switch {
	case err == nil:
		return Existence{State: Found, Flag: flag}
	case model.IsNotFound(err):
		return Existence{State: Absent}
	default:
		return Existence{State: Failed, Err: err}
	}
}

// Exists is Resolve reduced to a boolean.
func (r *Resolver) Exists(ctx context.Context, projectKey string, flagKey string) (bool, error) {
	existence := r.Resolve(ctx, projectKey, flagKey)
	if existence.State == Failed {
		return false, existence.Err
	}
	return existence.State == Found, nil
}
