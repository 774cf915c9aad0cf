// klf200bridge mirrors a VELUX KLF-200 gateway into a persistent state tree.
//
// Products, scenes and groups of the gateway become channels and states in a
// SQLite-backed store. Writes to writable states, for example from MQTT
// set topics, are turned into gateway commands. The gateway session is
// watched and re-established without operator action.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/klf200-bridge/internal/gateway/simulator"
	_ "github.com/nerrad567/klf200-bridge/migrations"

	"github.com/nerrad567/klf200-bridge/internal/bridge"
	"github.com/nerrad567/klf200-bridge/internal/dispatch"
	"github.com/nerrad567/klf200-bridge/internal/gateway"
	"github.com/nerrad567/klf200-bridge/internal/history"
	"github.com/nerrad567/klf200-bridge/internal/infrastructure/config"
	"github.com/nerrad567/klf200-bridge/internal/infrastructure/database"
	"github.com/nerrad567/klf200-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/klf200-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/klf200-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/klf200-bridge/internal/mirror"
	"github.com/nerrad567/klf200-bridge/internal/schedule"
	"github.com/nerrad567/klf200-bridge/internal/store"
	"github.com/nerrad567/klf200-bridge/internal/watchdog"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when neither -config nor KLF200_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// envPrefix maps flags to environment variables: -log-level is KLF200_LOG_LEVEL.
	envPrefix = "KLF200"

	// shutdownTimeout bounds the teardown after the signal.
	shutdownTimeout = 30 * time.Second
)

// options are the command-line settings.
type options struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags reads flags, falling back to KLF200_* environment variables.
func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("klf200bridge", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "path to the YAML configuration file")
	fs.StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(envPrefix)); err != nil {
		return options{}, fmt.Errorf("parsing flags: %w", err)
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled by the shutdown signal
//   - opts: Command-line settings
//
// Returns:
//   - error: nil on clean shutdown, or the failure that stopped the bridge
func run(ctx context.Context, opts options) error {
	log := logging.Default()
	log.Info("starting klf200 bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", opts.configPath)

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Nothing to report to once the log is gone
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	db, err := database.OpenAndMigrate(ctx, database.Config{
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
	log.Info("database ready", "path", cfg.Database.Path)

	st := store.New(store.WithPersister(store.NewSQLitePersister(db)))
	if err := st.Load(ctx); err != nil {
		return fmt.Errorf("loading state tree: %w", err)
	}
	log.Info("state tree loaded", "states", len(st.StateIDs("*")))

	queue := dispatch.New(log)
	defer queue.Close()

	dialer, err := gateway.Open(cfg.Gateway.Driver, gateway.DriverConfig{
		Host:        cfg.Gateway.Host,
		Port:        cfg.Gateway.Port,
		Fingerprint: cfg.Gateway.Fingerprint,
	})
	if err != nil {
		return fmt.Errorf("opening gateway driver: %w", err)
	}
	log.Info("gateway driver ready", "driver", cfg.Gateway.Driver, "host", cfg.Gateway.Host)

	wd := watchdog.New(watchdog.Config{
		Dialer:   dialer,
		Password: cfg.Gateway.Password,
		Initializer: bridge.New(bridge.Config{
			Store:           st,
			Dispatcher:      queue,
			TimeZone:        cfg.Gateway.TimeZone,
			CommandTimeout:  cfg.Gateway.CommandTimeout,
			RefreshInterval: cfg.Gateway.RefreshInterval,
			Logger:          log.With("component", "bridge"),
		}),
		Store:          st,
		Queue:          queue,
		ReconnectDelay: cfg.Gateway.ReconnectDelay,
		LoginTimeout:   cfg.Gateway.LoginTimeout,
		Logger:         log.With("component", "watchdog"),
	})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return wd.Run(gctx)
	})
	sv := &supervisor{wd: wd, g: g, stop: stop}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startMirror(gctx, g, cfg.MQTT, st, queue, log)
		if err != nil {
			return sv.abort(fmt.Errorf("starting MQTT mirror: %w", err))
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT mirror disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return sv.abort(fmt.Errorf("connecting to InfluxDB: %w", err))
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

		recorder := history.New(history.Config{Writer: influxClient, Source: st, Logger: log.With("component", "history")})
		recorder.Start()
		defer recorder.Stop()
		log.Info("state history enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.Gateway.AutomaticReboot {
		sched, err := schedule.New(schedule.Config{
			Spec:     cfg.Gateway.RebootCron,
			Rebooter: wd,
			Logger:   log.With("component", "schedule"),
		})
		if err != nil {
			return sv.abort(err)
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := sched.Stop(stopCtx); stopErr != nil {
				log.Warn("reboot schedule did not stop in time", "error", stopErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return sv.abort(fmt.Errorf("health check failed: %w", err))
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-gctx.Done()
	if ctx.Err() != nil {
		log.Info("shutdown signal received, cleaning up")
	}
	if err := sv.shutdown(); err != nil {
		if errors.Is(err, gateway.ErrAuth) {
			return fmt.Errorf("gateway rejected the password: %w", err)
		}
		return err
	}

	log.Info("klf200 bridge stopped")
	return nil
}

// loadConfig loads the file named by opts and applies the flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
	}
	return cfg, nil
}

// startMirror connects to the broker and runs the state mirror in g.
//
// Parameters:
//   - ctx: Stops the mirror when done
//   - g: Group supervising the bridge goroutines
//   - cfg: MQTT configuration
//   - st: The state tree
//   - queue: Dispatch queue for set messages
//   - log: Logger instance
//
// Returns:
//   - *mqtt.Client: Connected client, closed by the caller
//   - error: If the broker cannot be reached
func startMirror(ctx context.Context, g *errgroup.Group, cfg config.MQTTConfig, st *store.Store, queue *dispatch.Queue, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, err
	}
	client.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	m := mirror.New(mirror.Config{
		Broker:     client,
		Store:      st,
		Dispatcher: queue,
		Topics:     client.Topics(),
		QoS:        byte(cfg.QoS), //nolint:gosec // Validated to 0..2
		Logger:     log.With("component", "mirror"),
	})
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected, republishing states")
		m.Resync(ctx)
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	g.Go(func() error {
		return m.Run(ctx)
	})
	return client, nil
}

// supervisor owns the goroutines started by run.
type supervisor struct {
	wd   *watchdog.Watchdog
	g    *errgroup.Group
	stop context.CancelFunc
}

// shutdown logs the gateway out, stops the remaining goroutines and waits
// for all of them.
func (s *supervisor) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	wdErr := s.wd.Shutdown(ctx)
	s.stop()
	if err := s.g.Wait(); err != nil {
		return err
	}
	if wdErr != nil {
		return fmt.Errorf("stopping watchdog: %w", wdErr)
	}
	return nil
}

// abort unwinds a partially started bridge and returns cause.
func (s *supervisor) abort(cause error) error {
	if err := s.shutdown(); err != nil && !errors.Is(err, gateway.ErrAuth) {
		return errors.Join(cause, err)
	}
	return cause
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (nil if disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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
