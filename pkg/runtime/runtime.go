package runtime

import (
	"context"
	"fmt"

	"github.com/open-feature/flagmigrate/pkg/provider"
	"github.com/open-feature/flagmigrate/pkg/service"
	"github.com/open-feature/flagmigrate/pkg/store"
)

// Start seeds state from the provider and serves it until ctx is cancelled.
func Start(ctx context.Context, server service.IService, provider provider.IProvider, state *store.State) error {
	if err := provider.Initialize(ctx, state); err != nil {
		return fmt.Errorf("unable to initialize provider: %w", err)
	}
	return server.Serve(ctx, state)
}
