package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	adactor "github.com/tuupertunut/fanning/internal/adapter/actor"
	"github.com/tuupertunut/fanning/internal/adapter/hardware"
	"github.com/tuupertunut/fanning/internal/adapter/storage"
	"github.com/tuupertunut/fanning/internal/config"
	"github.com/tuupertunut/fanning/internal/core/actor"
	"github.com/tuupertunut/fanning/internal/core/domain"
	"github.com/tuupertunut/fanning/internal/core/port"
	"github.com/tuupertunut/fanning/internal/core/service"
	"github.com/tuupertunut/fanning/internal/metrics"
	"github.com/tuupertunut/fanning/internal/server"
	"github.com/tuupertunut/fanning/internal/util/actorutil"
	"github.com/tuupertunut/fanning/pkg/fan_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const minPollIntervalMillis = 100

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("starting fanning", zap.String("version", versioninfo.Short()))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	// control core
	es := &eventstream.EventStream{}
	m := metrics.New()
	backend, closeBackend, err := createBackend(cfg.Hardware, m, logger)
	if err != nil {
		logger.Error("could not create hardware backend", zap.Error(err))
		return
	}
	defer closeBackend()
	store := storage.NewJSONCurveStore(cfg.Control.CurvesFile, backend, logger)
	svc := service.NewControlService(backend, store, logger.Named("control"),
		service.WithEventStream(es), service.WithMetrics(m))

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, es, controlActorProvider(cfg, svc, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("could not start master actor", zap.Error(err))
		return
	}

	server := server.NewServer(*cfg, ctx, pid, m.Handler())
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	svc.Stop()
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => FANNING_PORT
	if p := os.Getenv("PORT"); p != "" {
		os.Setenv("FANNING_PORT", p)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("fanning")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = config.ParseLogLevel(viper.GetString("log_level"))

	if cfg.MQTT.Enable {
		// check and fix base topic
		baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic

		// check and fix homeassistant discovery topic
		hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
		if err != nil {
			return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.HADiscoveryTopic = hadBaseTopic
	}

	// check bounds
	if cfg.Control.PollIntervalMillis < minPollIntervalMillis {
		return nil, fmt.Errorf("config param control.poll_interval_millis should be >= %d", minPollIntervalMillis)
	}
	if cfg.Control.StoreTimeoutMillis == 0 {
		return nil, errors.New("config param control.store_timeout_millis should be > 0")
	}

	if cfg.Control.CurvesFile == "" {
		curvesFile, err := defaultCurvesFile()
		if err != nil {
			return nil, err
		}
		cfg.Control.CurvesFile = curvesFile
	}

	return &cfg, nil
}

func createBackend(cfg config.HardwareConfig, m *metrics.Metrics, logger *zap.Logger) (port.HardwareBackend, func(), error) {
	switch cfg.Backend {
	case config.HardwareBackendMock:
		return hardware.NewDefaultMockBackend(), func() {}, nil
	case config.HardwareBackendModbus:
		backend, err := hardware.CreateModbusBackend(cfg.Modbus, logger, &fan_modbus.ModbusInstrument{
			RecordTime: m.ObserveModbusRequest,
		})
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {
			if err := backend.Close(); err != nil {
				logger.Warn("error closing modbus backend", zap.Error(err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown hardware backend %q", cfg.Backend)
	}
}

func defaultCurvesFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config param control.curves_file is not set and there is no user config dir: %w", err)
	}
	return filepath.Join(dir, "Fanning", "fanCurves.json"), nil
}

func controlActorProvider(cfg *config.Config, svc *service.ControlService, logger *zap.Logger) actor.ControlActorProvider {
	return func() *actor.ControlActor {
		return actor.NewControlActor(cfg, svc, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "fanning")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("control.poll_interval_millis", 1000)
	viper.SetDefault("control.curves_file", "")
	viper.SetDefault("control.store_timeout_millis", 2000)
	viper.SetDefault("hardware.backend", config.HardwareBackendMock)
	viper.SetDefault("hardware.modbus.port", 502)
	viper.SetDefault("hardware.modbus.timeout_millis", 1000)
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
