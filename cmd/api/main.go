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
	"syscall"
	"time"

	adactor "github.com/berfenger/yeelightpro2mqtt/internal/adapter/actor"
	"github.com/berfenger/yeelightpro2mqtt/internal/config"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/actor"
	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
	"github.com/berfenger/yeelightpro2mqtt/internal/metrics"
	"github.com/berfenger/yeelightpro2mqtt/internal/server"
	"github.com/berfenger/yeelightpro2mqtt/internal/util/actorutil"
	"github.com/berfenger/yeelightpro2mqtt/pkg/regmap"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

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

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	m := metrics.New()
	eventStream := &eventstream.EventStream{}

	// init Modbus actor provider
	modbusProv, err := modbusActorProvider(cfg, m, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, modbusProv, mqttActorProvider(cfg, logger), eventStream, m, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	// periodic state republish
	scheduler, err := startRepublishScheduler(cfg, ctx, pid, logger)
	if err != nil {
		panic(err)
	}

	server := server.NewServer(*cfg, ctx, pid, eventStream, m, logger)
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

	if scheduler != nil {
		scheduler.Stop()
	}
	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => YEELIGHTPRO_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("YEELIGHTPRO_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("yeelightpro")
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

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

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

	// check devices
	if err := config.CheckDevices(cfg.Devices); err != nil {
		return nil, err
	}

	// check bounds
	if cfg.HasModbusDevices() {
		if cfg.Modbus.Host == "" {
			return nil, errors.New("config param modbus.host is required by modbus devices")
		}
		if cfg.Modbus.PollIntervalMillis > 0 && cfg.Modbus.PollIntervalMillis < 500 {
			return nil, errors.New("config param modbus.poll_interval_millis should be >= 500")
		}
	}

	return &cfg, nil
}

func modbusActorProvider(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (actor.ModbusActorProvider, error) {

	if !cfg.HasModbusDevices() {
		return nil, nil
	}

	devices, err := adactor.ModbusDevicesFromConfig(cfg.Devices)
	if err != nil {
		return nil, err
	}

	client, err := regmap.CreateModbusDeviceClient(cfg.Modbus.Host, cfg.Modbus.Port,
		time.Duration(cfg.Modbus.TimeoutMillis)*time.Millisecond, logger, m.ModbusInstrument())
	if err != nil {
		return nil, err
	}

	return func() *adactor.ModbusActor {
		return adactor.NewModbusActor(client, devices, cfg.Modbus, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}

// startRepublishScheduler refreshes discovery and retained state on a fixed
// interval, so a broker restart without persistence heals by itself.
func startRepublishScheduler(cfg *config.Config, root *pactor.RootContext, master *pactor.PID, logger *zap.Logger) (quartz.Scheduler, error) {
	if cfg.MQTT.RepublishIntervalSeconds == 0 {
		return nil, nil
	}
	scheduler := quartz.NewStdScheduler()
	scheduler.Start(context.Background())

	republish := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		_, err := root.RequestFuture(master, domain.RepublishDiscoveryRequest{}, 10*time.Second).Result()
		if err != nil {
			logger.Warn("republish failed", zap.Error(err))
			return false, err
		}
		return true, nil
	})
	trigger := quartz.NewSimpleTrigger(time.Duration(cfg.MQTT.RepublishIntervalSeconds) * time.Second)
	if err := scheduler.ScheduleJob(quartz.NewJobDetail(republish, quartz.NewJobKey("republish")), trigger); err != nil {
		scheduler.Stop()
		return nil, err
	}
	return scheduler, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", true)
	viper.SetDefault("mqtt.base_topic", "yeelightpro")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mqtt.republish_interval_seconds", 0)
	viper.SetDefault("modbus.port", 502)
	viper.SetDefault("modbus.poll_interval_millis", 5000)
	viper.SetDefault("modbus.timeout_millis", 1000)
	viper.SetDefault("modbus.read_delay_after_change_millis", 500)
	viper.SetDefault("entities.select_placeholder", "")
	viper.SetDefault("entities.temperature_unit", "°C")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
