package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/hearth-home/hearth-core/migrations"

	"github.com/hearth-home/hearth-core/internal/api"
	mqttbridge "github.com/hearth-home/hearth-core/internal/bridges/mqtt"
	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
	"github.com/hearth-home/hearth-core/internal/infrastructure/influxdb"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth-core/internal/items"
	"github.com/hearth-home/hearth-core/internal/model"
	"github.com/hearth-home/hearth-core/internal/persistence"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/rules/handlers"
	"github.com/hearth-home/hearth-core/internal/scheduler"
	"github.com/hearth-home/hearth-core/internal/storage"
	"github.com/hearth-home/hearth-core/internal/things"
)

// shutdownTimeout bounds how long stopping subsystems may take once the
// shutdown signal arrives.
const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Hearth Core runtime",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Cancel on interrupt signals (Ctrl+C, SIGTERM) for
			// graceful shutdown.
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx)
		},
	}
}

// run is the actual application logic, separated for testability.
// Returning an error allows the command to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Document store backing the managed providers and engine state
	store := storage.New(db)

	// Event bus - everything downstream subscribes to it
	bus := events.NewBus(log, cfg.Events.QueueSize)
	bus.Start()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if stopErr := bus.Stop(stopCtx); stopErr != nil {
			log.Error("error stopping event bus", "error", stopErr)
		}
	}()

	// Job scheduler for cron triggers and persistence snapshots
	sched := scheduler.New(log)
	defer sched.Close()

	// Registries with their storage-backed managed providers
	itemReg := items.NewRegistry(bus, log)
	itemMP := items.NewManagedProvider(store, log)
	if err := itemMP.Load(); err != nil {
		return fmt.Errorf("loading managed items: %w", err)
	}
	itemReg.SetManagedProvider(itemMP)

	thingReg := things.NewRegistry(bus, log)
	thingMP := things.NewManagedProvider(store, log)
	if err := thingMP.Load(); err != nil {
		return fmt.Errorf("loading managed things: %w", err)
	}
	thingReg.SetManagedProvider(thingMP)

	ruleReg := rules.NewRegistry(bus, log)
	ruleMP := rules.NewManagedProvider(store, log)
	if err := ruleMP.Load(); err != nil {
		return fmt.Errorf("loading managed rules: %w", err)
	}
	ruleReg.SetManagedProvider(ruleMP)
	log.Info("registries initialised",
		"items", itemReg.Count(), "things", thingReg.Count(), "rules", ruleReg.Count())

	// Rule engine with the built-in handler set
	engine := rules.NewEngine(ruleReg, bus, store, log)
	engine.AddHandlerFactory(handlers.NewCoreFactory(itemReg, thingReg, sched, bus, engine, log))
	if err := engine.Start(); err != nil {
		return fmt.Errorf("starting rule engine: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		log.Info("stopping rule engine")
		if stopErr := engine.Stop(stopCtx); stopErr != nil {
			log.Error("error stopping rule engine", "error", stopErr)
		}
	}()

	// YAML model layer: repository, registry providers, directory watcher
	repo := model.NewRepository(cfg.Model.Dir, log)

	itemProv := model.NewYAMLItemProvider(log)
	repo.AddListener(itemProv)
	itemReg.AddProvider(itemProv)

	thingProv := model.NewYAMLThingProvider(log)
	repo.AddListener(thingProv)
	thingReg.AddProvider(thingProv)

	ruleProv := model.NewYAMLRuleProvider(log)
	repo.AddListener(ruleProv)
	ruleReg.AddProvider(ruleProv)

	watcher := model.NewWatcher(repo, cfg.Model.Dir, log)
	watcher.SetDebounce(cfg.GetModelDebounce())
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting model watcher: %w", err)
	}
	defer func() {
		log.Info("stopping model watcher")
		watcher.Stop()
	}()
	log.Info("model directory loaded", "dir", cfg.Model.Dir, "models", len(repo.ModelNames()))

	// State persistence (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(influxdb.Config{
			Enabled:       cfg.InfluxDB.Enabled,
			URL:           cfg.InfluxDB.URL,
			Token:         cfg.InfluxDB.Token,
			Org:           cfg.InfluxDB.Org,
			Bucket:        cfg.InfluxDB.Bucket,
			BatchSize:     cfg.InfluxDB.BatchSize,
			FlushInterval: cfg.InfluxDB.FlushInterval,
		})
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

		service := persistence.NewInfluxService(influxClient, persistence.RegistryTypes(itemReg), log)
		manager, mgrErr := persistence.NewManager(service, itemReg, sched, bus,
			persistenceStrategies(cfg), log)
		if mgrErr != nil {
			return fmt.Errorf("configuring persistence: %w", mgrErr)
		}
		manager.Start()
		defer manager.Stop()

		if cfg.Persistence.RestoreOnStartup {
			manager.RestoreOnStartup(ctx)
		}
	} else {
		log.Info("InfluxDB disabled, state persistence off")
	}

	// MQTT bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(mqtt.Config{
			Enabled:               cfg.MQTT.Enabled,
			Host:                  cfg.MQTT.Broker.Host,
			Port:                  cfg.MQTT.Broker.Port,
			ClientID:              cfg.MQTT.Broker.ClientID,
			TLS:                   cfg.MQTT.Broker.TLS,
			Username:              cfg.MQTT.Auth.Username,
			Password:              cfg.MQTT.Auth.Password,
			QoS:                   cfg.MQTT.QoS,
			ReconnectInitialDelay: cfg.MQTT.Reconnect.InitialDelay,
			ReconnectMaxDelay:     cfg.MQTT.Reconnect.MaxDelay,
		})
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge, bridgeErr := mqttbridge.NewBridge(mqttbridge.Options{
			Client: mqttClient,
			Items:  itemReg,
			Bus:    bus,
			QoS:    byte(cfg.MQTT.QoS),
			Logger: log,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// Operational API: /health and the WebSocket event stream
	server, err := api.New(api.Deps{
		Config: api.Config{
			Host: cfg.API.Host,
			Port: cfg.API.Port,
			Timeouts: api.TimeoutConfig{
				Read:  cfg.API.Timeouts.Read,
				Write: cfg.API.Timeouts.Write,
				Idle:  cfg.API.Timeouts.Idle,
			},
			TLS: api.TLSConfig{
				Enabled:  cfg.API.TLS.Enabled,
				CertFile: cfg.API.TLS.CertFile,
				KeyFile:  cfg.API.TLS.KeyFile,
			},
		},
		WS: api.WebSocketConfig{
			PingInterval:   cfg.WebSocket.PingInterval,
			PongTimeout:    cfg.WebSocket.PongTimeout,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		},
		JWTSecret: cfg.Security.JWTSecret,
		Logger:    log,
		Bus:       bus,
		Items:     itemReg,
		Things:    thingReg,
		Rules:     ruleReg,
		Checks:    healthChecks(db, mqttClient, influxClient),
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy before declaring readiness
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal; deferred Close calls unwind in reverse
	// startup order.
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Hearth Core stopped")
	return nil
}

// persistenceStrategies maps the config section onto the persistence
// package's strategy type.
func persistenceStrategies(cfg *config.Config) []persistence.StrategyConfig {
	out := make([]persistence.StrategyConfig, 0, len(cfg.Persistence.Strategies))
	for _, s := range cfg.Persistence.Strategies {
		out = append(out, persistence.StrategyConfig{
			Name:           s.Name,
			CronExpression: s.Cron,
			Items:          s.Items,
		})
	}
	return out
}

// healthChecks builds the /health probe set for the enabled subsystems.
func healthChecks(db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) []api.Check {
	checks := []api.Check{
		{Name: "database", Probe: db.HealthCheck},
	}
	if mqttClient != nil {
		checks = append(checks, api.Check{Name: "mqtt", Probe: mqttClient.HealthCheck})
	}
	if influxClient != nil {
		checks = append(checks, api.Check{Name: "influxdb", Probe: influxClient.HealthCheck})
	}
	return checks
}

// healthCheck verifies the infrastructure connections concurrently and
// reports the first failure.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := db.HealthCheck(gctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		return nil
	})
	if mqttClient != nil {
		g.Go(func() error {
			if err := mqttClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("mqtt: %w", err)
			}
			return nil
		})
	}
	if influxClient != nil {
		g.Go(func() error {
			if err := influxClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("influxdb: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
