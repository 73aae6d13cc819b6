package migrate

import (
	"slices"

	"github.com/open-feature/flagmigrate/pkg/model"
)

// NewCreatePayload builds the destination create request of a source flag.
// Variation ids are dropped, the destination assigns its own.
//
// The service has two settings for client side exposure. When the legacy
// includeInSnippet is set it wins and is carried as is; otherwise the
// clientSideAvailability of the source is copied.
func NewCreatePayload(flag model.FeatureFlag) model.FlagCreatePayload {
	payload := model.FlagCreatePayload{
		Name:        flag.Name,
		Key:         flag.Key,
		Description: flag.Description,
		Temporary:   flag.Temporary,
		Tags:        slices.Clone(flag.Tags),
	}

	if flag.Variations != nil {
		payload.Variations = make([]model.Variation, len(flag.Variations))
		for i, v := range flag.Variations {
			v.ID = ""
			payload.Variations[i] = v
		}
	}
	if flag.Defaults != nil {
		defaults := *flag.Defaults
		payload.Defaults = &defaults
	}

	if flag.IncludeInSnippet {
		payload.IncludeInSnippet = true
	} else if flag.ClientSideAvailability != nil {
		availability := *flag.ClientSideAvailability
		payload.ClientSideAvailability = &availability
	}

	return payload
}
