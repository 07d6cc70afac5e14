// Package influx records one InfluxDB point per finished execution.
package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/models"
)

// Measurement is the name of the point written for every finished execution.
const Measurement = "workflow_executions"

const (
	defaultConnectTimeout = 10 * time.Second
	defaultBatchSize      = 100
	defaultFlushInterval  = time.Second
)

var ErrServerUnhealthy = errors.New("influxdb server not healthy")

type Config struct {
	URL    string `yaml:"url" validate:"required,url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket" validate:"required"`
}

// PointWriter is the non-blocking write API of the influx client.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Observer is an engine.Observer writing execution metrics.
type Observer struct {
	writer   PointWriter
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

func NewObserver(writer PointWriter) *Observer {
	return &Observer{writer: writer}
}

// Connect pings the server and returns an observer on its batching write API. Async write
// errors are logged.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Observer, error) {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(defaultBatchSize).
			SetFlushInterval(uint(defaultFlushInterval.Milliseconds())),
	)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()

		return nil, fmt.Errorf("influxdb ping failed: %w", err)
	}

	if !healthy {
		client.Close()

		return nil, ErrServerUnhealthy
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	go func() {
		for err := range writeAPI.Errors() {
			logger.Error("InfluxDB write failed", "error", err)
		}
	}()

	return &Observer{writer: writeAPI, client: client, writeAPI: writeAPI}, nil
}

func (o *Observer) ExecutionStarted(context.Context, engine.RunInfo) {}

func (o *Observer) ExecutionFinished(_ context.Context, run engine.RunInfo, result *models.ExecutionResult) {
	o.writer.WritePoint(Point(run, result, time.Now()))
}

// Close flushes pending points. Observers built with NewObserver own no client.
func (o *Observer) Close() {
	if o.client == nil {
		return
	}

	o.writeAPI.Flush()
	o.client.Close()
}

// Point builds the measurement for one finished run.
func Point(run engine.RunInfo, result *models.ExecutionResult, ts time.Time) *write.Point {
	failed := 0

	for _, o := range result.Outcomes {
		if !o.Success {
			failed++
		}
	}

	tags := map[string]string{
		"workflow_id": result.WorkflowID,
		"status":      string(result.Status),
	}

	if run.ScopeID != "" {
		tags["scope_id"] = run.ScopeID
	}

	return write.NewPoint(
		Measurement,
		tags,
		map[string]any{
			"duration_ms":     result.ExecutionTimeMs,
			"actions":         len(result.Outcomes),
			"actions_failed":  failed,
			"actions_success": len(result.Outcomes) - failed,
		},
		ts,
	)
}
