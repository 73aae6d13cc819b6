package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/open-feature/flagmigrate/pkg/model"
	"github.com/open-feature/flagmigrate/pkg/store"
)

type stubProvider struct {
	err error
}

func (p stubProvider) Initialize(_ context.Context, state *store.State) error {
	if p.err != nil {
		return p.err
	}
	state.PutProject(model.Project{Key: "p1"})
	return nil
}

type stubService struct {
	served *store.State
}

func (s *stubService) Serve(ctx context.Context, state *store.State) error {
	s.served = state
	<-ctx.Done()
	return nil
}

func TestStart_ProviderError_NotServed(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := &stubService{}

	err := Start(context.Background(), svc, stubProvider{err: errors.New("bad fixture")}, store.NewState(logger))
	assert.ErrorContains(t, err, "bad fixture")
	assert.Nil(t, svc.served)
}

func TestStart_ServesSeededState(t *testing.T) {
	logger, _ := test.NewNullLogger()
	state := store.NewState(logger)
	svc := &stubService{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, Start(ctx, svc, stubProvider{}, state))
	assert.Same(t, state, svc.served)

	_, err := state.GetProject(context.Background(), "p1")
	assert.NoError(t, err)
}
