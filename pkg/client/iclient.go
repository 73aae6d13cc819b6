package client

import (
	"context"

	"github.com/open-feature/flagmigrate/pkg/model"
)

// IClient is the capability set the migration needs from a flag service.
// Implementations return *model.ServiceError values so callers can branch on
// model.KindOf.
type IClient interface {
	GetProject(ctx context.Context, key string) (model.Project, error)
	ListFlags(ctx context.Context, projectKey string) ([]model.FeatureFlag, error)
	GetFlag(ctx context.Context, projectKey string, flagKey string) (model.FeatureFlag, error)
	CreateFlag(ctx context.Context, projectKey string, payload model.FlagCreatePayload) (model.FeatureFlag, error)
	PatchFlag(ctx context.Context, projectKey string, flagKey string, plan model.PatchPlan, comment string) (model.FeatureFlag, error)
}
