package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"autoscuola/internal/places"
	"autoscuola/internal/places/sink"
	"autoscuola/internal/platform/config"
	"autoscuola/internal/platform/logger"
)

var flags struct {
	output     string
	timeout    time.Duration
	s3Bucket   string
	s3Key      string
	s3Endpoint string
}

var rootCmd = &cobra.Command{
	Use:   "places-refresh [--output places-data.json] [--s3-bucket name]",
	Short: "Fetches the school's review rating and writes the places snapshot.",
	Long: `Fetches rating and review count from the places API and writes the
snapshot served as places-data.json. If the API cannot be reached the
fallback figures are written with the error recorded. The command fails only
when the snapshot cannot be written.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), cmd, config.PlacesFromEnv())
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.output, "output", "o", "", "snapshot path (default $PLACES_OUTPUT or ./places-data.json)")
	f.DurationVar(&flags.timeout, "timeout", 0, "places API request timeout")
	f.StringVar(&flags.s3Bucket, "s3-bucket", "", "also upload the snapshot to this bucket")
	f.StringVar(&flags.s3Key, "s3-key", "", "object key for the upload")
	f.StringVar(&flags.s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint, enables path-style addressing")
}

func applyFlags(cmd *cobra.Command, cfg config.Places) config.Places {
	fs := cmd.Flags()
	if fs.Changed("output") {
		cfg.Output = flags.output
	}
	if fs.Changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	if fs.Changed("s3-bucket") {
		cfg.S3.Bucket = flags.s3Bucket
	}
	if fs.Changed("s3-key") {
		cfg.S3.Key = flags.s3Key
	}
	if fs.Changed("s3-endpoint") {
		cfg.S3.Endpoint = flags.s3Endpoint
	}
	return cfg
}

func run(ctx context.Context, cmd *cobra.Command, cfg config.Places) error {
	cfg = applyFlags(cmd, cfg)
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)

	var opts []places.UpdaterOption
	if cfg.S3.Enabled() {
		mirror, err := sink.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Key, cfg.S3.Region, cfg.S3.Endpoint)
		if err != nil {
			log.ErrorContext(ctx, "S3 upload disabled", "error", err)
		} else {
			opts = append(opts, places.WithMirror(mirror))
		}
	}

	clientOpts := []places.ClientOption{}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, places.WithTimeout(cfg.Timeout))
	}
	if cfg.DetailsURL != "" {
		clientOpts = append(clientOpts, places.WithDetailsURL(cfg.DetailsURL))
	}
	client := places.NewClient(cfg.APIKey, cfg.PlaceID, clientOpts...)
	updater := places.NewUpdater(client, sink.NewFile(cfg.Output), log, opts...)

	snap, err := updater.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rating %.1f/5, %d reviews, next update %s\n",
		snap.Rating, snap.UserRatingsTotal, snap.NextUpdate)
	return nil
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
