package service

import (
	"context"

	"github.com/open-feature/flagmigrate/pkg/store"
)

// IService exposes a flag store to clients until ctx is cancelled.
type IService interface {
	Serve(ctx context.Context, state *store.State) error
}
