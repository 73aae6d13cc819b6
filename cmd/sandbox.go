package cmd

import (
	"errors"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/open-feature/flagmigrate/pkg/provider"
	"github.com/open-feature/flagmigrate/pkg/runtime"
	"github.com/open-feature/flagmigrate/pkg/service"
	"github.com/open-feature/flagmigrate/pkg/store"
)

var (
	serviceProvider string
	syncProvider    string
	uri             string
	httpServicePort int32
	sandboxToken    string
)

func findService(name string) (service.IService, error) {
	registeredServices := map[string]service.IService{
		"http": &service.HTTPService{
			HTTPServiceConfiguration: &service.HTTPServiceConfiguration{
				Port:     httpServicePort,
				APIToken: sandboxToken,
			},
			Logger: log.StandardLogger(),
		},
	}
	v, ok := registeredServices[name]
	if !ok {
		return nil, errors.New("no service-provider set")
	}
	log.Debugf("Using %s service-provider", name)
	return v, nil
}

func findProvider(name string) (provider.IProvider, error) {
	registeredSync := map[string]provider.IProvider{
		"filepath": &provider.FilePathProvider{
			URI:    uri,
			Logger: log.StandardLogger(),
		},
	}
	v, ok := registeredSync[name]
	if !ok {
		return nil, errors.New("no sync-provider set")
	}
	log.Debugf("Using %s sync-provider", name)
	return v, nil
}

// sandboxCmd serves fixture projects over the same REST API the migration talks to
var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Serve fixture projects over a local flag service API",
	Long: `sandbox loads projects and flags from a fixture file and serves them over
the flag service REST API, so a migration can be rehearsed with --base-url
pointing at it. The fixture is reloaded whenever the file changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		providerImpl, err := findProvider(syncProvider)
		if err != nil {
			return err
		}
		serviceImpl, err := findService(serviceProvider)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runtime.Start(ctx, serviceImpl, providerImpl, store.NewState(log.StandardLogger()))
	},
}

func init() {
	sandboxCmd.Flags().Int32VarP(&httpServicePort, "port", "p", 8080, "Port to listen on")
	sandboxCmd.Flags().StringVarP(&serviceProvider, "service-provider", "r", "http", "Set a serve provider e.g. http")
	sandboxCmd.Flags().StringVarP(&syncProvider, "sync-provider", "y", "filepath", "Set a sync provider e.g. filepath")
	sandboxCmd.Flags().StringVarP(&uri, "uri", "f", "fixtures.json", "Fixture file to serve projects and flags from")
	sandboxCmd.Flags().StringVar(&sandboxToken, "api-token", "", "Token clients must send, empty accepts any")
	rootCmd.AddCommand(sandboxCmd)
}
