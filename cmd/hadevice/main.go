// hadevice - Home Assistant MQTT discovery device
//
// This is the main entry point for the device binary. It builds the
// entities described in the configuration, connects to the MQTT broker,
// announces them to Home Assistant, and keeps their state published.
//
// Configuration is read from configs/config.yaml unless HADEVICE_CONFIG
// points elsewhere.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/graylogic-ha/migrations"

	"github.com/nerrad567/graylogic-ha/internal/api"
	"github.com/nerrad567/graylogic-ha/internal/device"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/config"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/database"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/influxdb"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/logging"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// pruneInterval is how often old state history is deleted.
const pruneInterval = time.Hour

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting hadevice",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"device_id", cfg.Device.ID,
		"entities", len(cfg.Entities),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []device.Option{
		device.WithLogger(log.Component("device")),
		device.WithMetrics(device.NewMetrics(registry)),
		device.WithKeepAlive(pingInterval(cfg.GetKeepAlive())),
	}
	checks := map[string]api.HealthChecker{}

	// State history in SQLite (optional)
	var history *device.SQLiteStateRecorder
	if cfg.History.Enabled {
		db, err := openHistory(ctx, cfg.History, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		history = device.NewSQLiteStateRecorder(db.DB)
		opts = append(opts, device.WithRecorder(history))
		checks["database"] = db
	} else {
		log.Info("state history disabled")
	}

	// State history in InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		opts = append(opts, device.WithRecorder(influxRecorder(influxClient)))
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	dev, err := device.New(device.NewResources(cfg.EntityCapacity()), device.Config{
		DeviceID:        cfg.Device.ID,
		DeviceName:      cfg.Device.Name,
		Manufacturer:    cfg.Device.Manufacturer,
		Model:           cfg.Device.Model,
		SoftwareVersion: version,
		DiscoveryPrefix: cfg.Discovery.Prefix,
	}, opts...)
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}

	producers, err := buildEntities(dev, cfg.Entities, log.Component("producer"))
	if err != nil {
		return err
	}
	log.Info("entities created", "count", dev.Len(), "producers", len(producers))

	// Status server (optional)
	if cfg.Status.Enabled {
		srv, err := api.New(api.Deps{
			Config:   cfg.Status,
			Logger:   log.Component("status"),
			Device:   dev,
			Gatherer: registry,
			History:  historySource(history),
			Checks:   checks,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating status server: %w", err)
		}
		if err := srv.Start(); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	// Producers stop when the supervisor returns, whatever the reason.
	workCtx, stopWork := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, p := range producers {
		wg.Go(func() { p.run(workCtx) })
	}
	if history != nil && cfg.History.RetentionDays > 0 {
		retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
		wg.Go(func() { pruneLoop(workCtx, history, retention, log) })
	}

	initialDelay, maxDelay := cfg.GetReconnectDelays()
	sup := &supervisor{
		device: dev,
		dial: func(ctx context.Context) (conn, error) {
			return mqtt.Dial(ctx, cfg.MQTT)
		},
		session:      sessionOptions(mqtt.SessionOptionsFromConfig(cfg.MQTT), dev),
		logger:       log.Component("supervisor"),
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		maxAttempts:  cfg.MQTT.Reconnect.MaxAttempts,
	}

	log.Info("initialisation complete", "broker", mqtt.BrokerURL(cfg.MQTT))
	supErr := sup.run(ctx)

	stopWork()
	wg.Wait()

	if supErr != nil {
		return fmt.Errorf("mqtt session: %w", supErr)
	}
	log.Info("hadevice stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HADEVICE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HADEVICE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openHistory opens the SQLite history database and applies migrations.
func openHistory(ctx context.Context, cfg config.HistoryConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.FromHistory(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already returning the migration error
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Already returning the query error
		return nil, err
	}
	log.Info("state history database ready", "path", db.Path(), "schema_version", version)
	return db, nil
}

// influxRecorder adapts the InfluxDB client to the device's recorder shape.
func influxRecorder(c *influxdb.Client) device.StateRecorder {
	return device.StateRecorderFunc(func(ctx context.Context, rec device.StateRecord) error {
		return c.RecordEntityState(ctx, influxdb.EntityState{
			DeviceID: rec.DeviceID,
			EntityID: rec.EntityID,
			Domain:   rec.Domain.String(),
			Unit:     rec.Unit,
			Value:    float64(rec.Value),
			At:       rec.At,
		})
	})
}

// historySource avoids handing the status server a typed nil.
func historySource(h *device.SQLiteStateRecorder) api.HistorySource {
	if h == nil {
		return nil
	}
	return h
}

// pruneLoop deletes history older than retention every pruneInterval.
func pruneLoop(ctx context.Context, h *device.SQLiteStateRecorder, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		deleted, err := h.Prune(ctx, retention)
		if err != nil && ctx.Err() == nil {
			log.Warn("pruning state history failed", "error", err)
		} else if deleted > 0 {
			log.Info("state history pruned", "rows", deleted)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
