// Gray Logic Occupancy - occupancy automation and notification engine.
//
// The engine tracks room occupancy and appliance power states, switches a
// room off once it has been vacant for the inactivity window, shuts the
// whole facility down at the configured daily time, and pushes every state
// change to WebSocket clients, MQTT and InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-occupancy/internal/api"
	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
	"github.com/nerrad567/gray-logic-occupancy/internal/history"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-occupancy/internal/panel"
	"github.com/nerrad567/gray-logic-occupancy/internal/sensor"
	"github.com/nerrad567/gray-logic-occupancy/internal/telemetry"
	"github.com/nerrad567/gray-logic-occupancy/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until ctx is cancelled and then tears
// everything down in reverse order. It is separated from main for tests.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("graylogic-occupancy", pflag.ContinueOnError)
	flags.SetOutput(stdout)
	configFlag := flags.StringP("config", "c", "", "path to config file (env GRAYLOGIC_CONFIG)")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	if *showVersion {
		fmt.Fprintf(stdout, "graylogic-occupancy %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Info("starting Gray Logic Occupancy",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(*configFlag)
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	settings, err := cfg.Settings()
	if err != nil {
		return fmt.Errorf("automation settings: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Everything that consumes engine output runs in consumers, which is only
	// stopped after the engine's final offline snapshot has gone out. Each
	// start is followed by a deferred stop so early returns drain the queues
	// before the clients they write to are closed.
	consumers := newConsumerGroup()

	var (
		sinks    automation.MultiSink
		hubSink  = &lateSink{}
		observer []automation.Observer
	)

	// History log (optional)
	var (
		db        *database.DB
		histStore history.Store
	)
	if cfg.History.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.History.Path,
			WALMode:     cfg.History.WALMode,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer func() {
			log.Info("closing history database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing history database", "error", closeErr)
			}
		}()

		applied, migrateErr := db.Migrate(ctx, migrations.FS)
		if migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("history database ready", "path", cfg.History.Path, "migrations_applied", applied)

		sqlStore := history.NewSQLiteStore(db.DB)
		histStore = sqlStore
		recorder := history.NewRecorder(sqlStore, history.RecorderOptions{
			BufferSize: cfg.History.BufferSize,
			Retention:  cfg.GetHistoryRetention(),
			Logger:     log.With("component", "history"),
		})
		sinks = append(sinks, recorder)
		consumers.Go(recorder.Run)
		defer consumers.stop() //nolint:errcheck // Error reported on the normal path
	} else {
		log.Info("history disabled")
	}

	// MQTT bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		publisher := sensor.NewStatePublisher(mqttClient, log.With("component", "mqtt-publisher"))
		sinks = append(sinks, publisher)
		observer = append(observer, publisher)
		consumers.Go(publisher.Run)
		defer consumers.stop() //nolint:errcheck // Error reported on the normal path
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		telem := telemetry.NewRecorder(influxClient, cfg.Site.ID)
		observer = append(observer, telem)
		consumers.Go(telem.Run)
		defer consumers.stop() //nolint:errcheck // Error reported on the normal path
	} else {
		log.Info("InfluxDB disabled")
	}

	sinks = append(sinks, hubSink)

	engine, err := automation.NewEngine(automation.Options{
		Rooms:    cfg.Rooms(),
		Settings: settings,
		Location: loc,
		Policy:   automation.DeferredPolicy(cfg.Automation.DeferredPolicy),
		Events:   sinks,
		Logger:   log.With("component", "automation"),
	})
	if err != nil {
		return fmt.Errorf("creating automation engine: %w", err)
	}
	defer engine.Close() //nolint:errcheck // Idempotent; closed explicitly on the normal path
	for _, obs := range observer {
		engine.Subscribe(obs)
	}
	log.Info("automation engine started",
		"rooms", len(cfg.Rooms()),
		"policy", cfg.Automation.DeferredPolicy,
		"inactivity_minutes", settings.InactivityMinutes,
		"auto_shutdown_time", settings.AutoShutdownTime.String(),
	)

	dashboard, err := panel.Handler(cfg.API.PanelDir)
	if err != nil {
		return fmt.Errorf("loading dashboard: %w", err)
	}

	deps := api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Engine:  engine,
		History: histStore,
		Panel:   dashboard,
		Version: version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if db != nil {
		deps.DB = db
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	hubSink.set(server.Hub())

	// Inbound sensor readings over MQTT
	if mqttClient != nil {
		source := sensor.NewMQTTSource(engine, mqttClient, byte(cfg.MQTT.QoS), log.With("component", "mqtt-sensors"))
		if startErr := source.Start(); startErr != nil {
			return fmt.Errorf("subscribing to occupancy sensors: %w", startErr)
		}
		defer func() {
			if stopErr := source.Stop(); stopErr != nil {
				log.Warn("error unsubscribing occupancy sensors", "error", stopErr)
			}
		}()
	}

	prodBase, cancelProducers := context.WithCancel(ctx)
	defer cancelProducers()
	producers, prodCtx := errgroup.WithContext(prodBase)

	checker := automation.NewShutdownChecker(engine, nil, cfg.GetShutdownCheckInterval(), log.With("component", "shutdown-checker"))
	producers.Go(func() error { return checker.Run(prodCtx) })

	if cfg.Simulator.Enabled {
		sim := sensor.NewSimulator(engine, sensor.SimulatorOptions{
			Interval:    cfg.GetSimulatorInterval(),
			Probability: cfg.Simulator.Probability,
			Seed:        cfg.Simulator.Seed,
			Logger:      log.With("component", "simulator"),
		})
		producers.Go(func() error { return sim.Run(prodCtx) })
		log.Info("sensor simulator enabled",
			"interval", cfg.GetSimulatorInterval().String(),
			"probability", cfg.Simulator.Probability,
		)
	}

	if err := server.Start(prodCtx); err != nil {
		cancelProducers()
		producers.Wait() //nolint:errcheck // Start error takes precedence
		return fmt.Errorf("starting API server: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		log.Warn("startup health check failed", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-prodCtx.Done()
	log.Info("shutdown signal received, cleaning up")

	runErr := producers.Wait()

	if closeErr := server.Close(); closeErr != nil {
		log.Error("error closing API server", "error", closeErr)
	}
	if closeErr := engine.Close(); closeErr != nil {
		log.Error("error closing automation engine", "error", closeErr)
	}

	if sinkErr := consumers.stop(); sinkErr != nil && runErr == nil {
		runErr = sinkErr
	}

	// Deferred Close() calls run in reverse order:
	// 1. MQTT sensor subscriptions
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. History database (if enabled)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("Gray Logic Occupancy stopped")
	return nil
}

// getConfigPath picks the config file: --config, then GRAYLOGIC_CONFIG,
// then the default path.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads path. A missing file at the default location falls back
// to built-in defaults plus environment overrides; any other missing file
// is an error.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Load("")
		}
	}
	return config.Load(path)
}

// healthCheck verifies the optional backends that were enabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// consumerGroup runs the goroutines that consume engine output on a context
// of their own. stop cancels that context and waits for them; only the
// first call does the work and later calls return its result.
type consumerGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
	stop   func() error
}

func newConsumerGroup() *consumerGroup {
	g := &consumerGroup{}
	g.ctx, g.cancel = context.WithCancel(context.Background())
	g.stop = sync.OnceValue(func() error {
		g.cancel()
		return g.group.Wait()
	})
	return g
}

// Go starts run with the group's context.
func (g *consumerGroup) Go(run func(context.Context) error) {
	g.group.Go(func() error { return run(g.ctx) })
}

// lateSink forwards events to a sink that can only be built after the
// engine exists. Events recorded before set are discarded.
type lateSink struct {
	target atomic.Pointer[api.Hub]
}

func (s *lateSink) set(hub *api.Hub) {
	s.target.Store(hub)
}

// Record implements automation.EventSink.
func (s *lateSink) Record(ev automation.Event) {
	if hub := s.target.Load(); hub != nil {
		hub.Record(ev)
	}
}
