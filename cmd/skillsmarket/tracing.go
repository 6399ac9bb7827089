package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/emergent/skillsmarket/pkg/config"
	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/telemetry"
	"github.com/emergent/skillsmarket/pkg/version"
)

var tracer = telemetry.Tracer("skillsmarket.cli")

// initTracing starts the tracer provider described by cfg.
func initTracing(ctx context.Context, cfg telemetry.Config) (telemetry.ShutdownFunc, error) {
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = version.Get().Version
	}
	return telemetry.InitTracer(ctx, cfg)
}

// withTracing wraps a command's RunE in a "cli.command" span. The tracer
// provider is started and flushed around the command.
func withTracing(cmd *cobra.Command) *cobra.Command {
	run := cmd.RunE

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		shutdown, err := initTracing(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to flush traces")
			}
		}()

		attrs := []attribute.KeyValue{
			attribute.String("command.name", cmd.Name()),
			attribute.String("command.path", cmd.CommandPath()),
			attribute.Int("args.count", len(args)),
		}
		cmd.Flags().Visit(func(flag *pflag.Flag) {
			if flag.Name != "token" {
				attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
			}
		})

		ctx, span := tracer.Start(ctx, "cli.command", trace.WithAttributes(attrs...))
		defer span.End()
		cmd.SetContext(ctx)

		if err := run(cmd, args); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}
	return cmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	flags.String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	flags.Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	_ = viper.BindPFlag("tracing.enabled", flags.Lookup("tracing-enabled"))
	_ = viper.BindPFlag("tracing.sampler_type", flags.Lookup("tracing-sampler"))
	_ = viper.BindPFlag("tracing.sampler_ratio", flags.Lookup("tracing-ratio"))
}
