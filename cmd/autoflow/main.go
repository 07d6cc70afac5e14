// Command autoflow runs workflow automations: an HTTP API, an event-driven worker and
// one-off commands for running, validating and importing definitions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newCommand().Run(ctx, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "autoflow",
		Usage:                 "Run workflow automations",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (file://, postgres://, sqlite://)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "records-url",
				Usage:   "Record store URL for task, record and report actions (memory://, redis://, postgres://, sqlite://)",
				Value:   "memory://",
				Sources: cli.EnvVars("RECORDS_URL"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the autoflow YAML config file",
				Sources: cli.EnvVars("AUTOFLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing action plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka). Empty disables lifecycle events",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
				Sources: cli.EnvVars("AUTOFLOW_TRACING"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Commands: []*cli.Command{
			apiCommand(),
			workerCommand(),
			runCommand(),
			validateCommand(),
			importCommand(),
		},
	}
}
