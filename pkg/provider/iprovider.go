package provider

import (
	"context"

	"github.com/open-feature/flagmigrate/pkg/store"
)

// IProvider seeds a store with projects and flags and keeps it up to date
// until ctx is cancelled.
type IProvider interface {
	Initialize(ctx context.Context, state *store.State) error
}
