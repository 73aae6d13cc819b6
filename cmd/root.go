package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/open-feature/flagmigrate/pkg/client"
	"github.com/open-feature/flagmigrate/pkg/migrate"
)

const envPrefix = "FLAGMIGRATE"

var cfgFile string

// rootCmd copies flags between projects
var rootCmd = &cobra.Command{
	Use:   "flagmigrate",
	Short: "Copy feature flags and their targeting from one project to another",
	Long: `flagmigrate creates every flag of the source project in the destination
project (unless it already exists there) and copies the targets, rules and
prerequisites of every environment the two projects have in common.

Flags that only exist in the destination are never touched.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runMigration(ctx, optionsFromConfig(), cmd.OutOrStdout(), log.StandardLogger())
	},
}

// Execute runs the root command and exits non-zero on any failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

type migrationOptions struct {
	APIToken      string
	Source        string
	Destination   string
	BaseURL       string
	Workers       int
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
	RateLimit     float64
	DryRun        bool
	SkipUnchanged bool
}

func optionsFromConfig() migrationOptions {
	return migrationOptions{
		APIToken:      viper.GetString("api-token"),
		Source:        viper.GetString("source"),
		Destination:   viper.GetString("destination"),
		BaseURL:       viper.GetString("base-url"),
		Workers:       viper.GetInt("workers"),
		Timeout:       viper.GetDuration("timeout"),
		MaxRetries:    viper.GetInt("max-retries"),
		RetryInterval: viper.GetDuration("retry-interval"),
		RateLimit:     viper.GetFloat64("rate-limit"),
		DryRun:        viper.GetBool("dry-run"),
		SkipUnchanged: viper.GetBool("skip-unchanged"),
	}
}

func runMigration(ctx context.Context, opts migrationOptions, out io.Writer, logger log.FieldLogger) error {
	if opts.APIToken == "" {
		return errors.New(`required flag "api-token" not set`)
	}
	if opts.Destination == "" {
		return errors.New(`required flag "destination" not set`)
	}
	if opts.Source == opts.Destination {
		return fmt.Errorf("source and destination are the same project %q", opts.Source)
	}

	c := client.NewHTTPClient(client.HTTPClientConfiguration{
		BaseURL:   opts.BaseURL,
		Token:     opts.APIToken,
		Timeout:   opts.Timeout,
		RateLimit: opts.RateLimit,
	})
	m := migrate.NewMigrator(c, migrate.Config{
		Workers: opts.Workers,
		Retry: migrate.RetryPolicy{
			MaxRetries:  opts.MaxRetries,
			Interval:    opts.RetryInterval,
			CallTimeout: opts.Timeout,
		},
		DryRun:        opts.DryRun,
		SkipUnchanged: opts.SkipUnchanged,
	}, logger)

	report, err := m.Run(ctx, opts.Source, opts.Destination)
	if report != nil {
		if werr := report.WriteSummary(out); werr != nil {
			logger.Warnf("unable to write summary: %v", werr)
		}
	}
	if err != nil {
		return err
	}
	if report.HasFailures() {
		return fmt.Errorf("%d flag(s) failed to migrate", len(report.Failed()))
	}
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file %s: %w", cfgFile, err)
		}
	}

	return setupLogging(viper.GetString("log-level"), viper.GetString("log-format"))
}

func setupLogging(level string, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text or json)")

	flags := rootCmd.Flags()
	flags.StringP("api-token", "t", "", "The API key to authenticate with")
	flags.StringP("source", "s", "default", "Project to copy flags from")
	flags.StringP("destination", "d", "", "The destination project to copy flags to")
	flags.String("base-url", client.DefaultBaseURL, "Base URL of the flag service")
	flags.Int("workers", migrate.DefaultWorkers, "Number of flags migrated concurrently")
	flags.Duration("timeout", migrate.DefaultCallTimeout, "Timeout of a single API call")
	flags.Int("max-retries", migrate.DefaultMaxRetries, "Retries of a rate limited or timed out API call")
	flags.Duration("retry-interval", migrate.DefaultRetryInterval, "Initial backoff between retries")
	flags.Float64("rate-limit", client.DefaultRateLimit, "Maximum API requests per second, 0 for unlimited")
	flags.Bool("dry-run", false, "Resolve and plan every change without writing to the destination")
	flags.Bool("skip-unchanged", false, "Do not patch collections the destination already holds")

	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))
	cobra.CheckErr(viper.BindPFlags(flags))
}
