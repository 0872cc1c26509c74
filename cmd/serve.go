package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eddielth/signal-monitor/api"
	"github.com/eddielth/signal-monitor/config"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/monitor"
	"github.com/eddielth/signal-monitor/mqtt"
	"github.com/eddielth/signal-monitor/transformer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run MQTT ingest, the health sweep and the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transformerManager, err := transformer.NewManager(cfg.Transformers)
	if err != nil {
		return errors.Wrap(err, "init transformers")
	}

	storageManager, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer storageManager.Close()

	dec, err := newDecoder(cfg.Decoder)
	if err != nil {
		return err
	}

	svc, err := newMonitor(cfg, storageManager, dec)
	if err != nil {
		return err
	}
	sweep := monitor.NewScheduler(svc, cfg.Monitor.Interval, facilities(cfg.Monitor))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if cfg.MQTT.Broker != "" {
		handler := mqtt.NewHandler(transformerManager, dec, storageManager, sampleValidator(cfg.Validation))
		mqttManager, err := mqtt.NewManager(cfg.MQTT, handler)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return mqttManager.Run(ctx)
		})
	} else {
		logger.Warn("no MQTT broker configured, ingest disabled")
	}

	if cfg.Monitor.Enabled {
		g.Go(func() error {
			return sweep.Run(ctx)
		})
	}

	server := api.NewServer(svc, dec, facilities(cfg.Monitor))
	if cfg.API.Enabled {
		g.Go(func() error {
			return server.Run(ctx, cfg.API)
		})
	}

	err = config.WatchConfig(configPath, func(newCfg *config.Config) error {
		for deviceType, transformerCfg := range newCfg.Transformers {
			if err := transformerManager.ReloadTransformer(deviceType, transformerCfg); err != nil {
				// keep the remaining transformers
				logger.Error("failed to reload transformer %s: %v", deviceType, err)
			}
		}

		svc.UpdateClassifier(newCfg.Health.Classifier())
		sweep.SetFacilities(facilities(newCfg.Monitor))
		server.SetFacilities(facilities(newCfg.Monitor))

		if level, err := logger.ParseLogLevel(newCfg.Logger.Level); err == nil && logLevel == "" {
			logger.SetLevel(level)
		}

		logger.Info("reloaded transformers, health bands and facilities; MQTT, storage and API listener changes take effect after a restart")
		return nil
	})
	if err != nil {
		logger.Warn("failed to watch config file: %v", err)
	} else {
		logger.Info("watching config file %s", configPath)
	}

	logger.Info("signal-monitor started")

	if err := g.Wait(); err != nil {
		logger.Error("service error: %v", err)
		return err
	}

	logger.Info("signal-monitor stopped")
	return nil
}
