package main

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/comfybridge/internal/document"
	"github.com/GriffinCanCode/comfybridge/internal/export"
	"github.com/GriffinCanCode/comfybridge/internal/imaging"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/comfybridge/internal/launcher"
	"github.com/GriffinCanCode/comfybridge/internal/prompt"
	"github.com/GriffinCanCode/comfybridge/internal/server"
	"github.com/GriffinCanCode/comfybridge/internal/session"
	"github.com/GriffinCanCode/comfybridge/internal/status"
	"github.com/GriffinCanCode/comfybridge/internal/transport"
	"github.com/GriffinCanCode/comfybridge/internal/workflow"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend channel, session machine, status poller and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Initializing comfybridge",
		zap.String("backend", cfg.Backend.URL),
		zap.String("data_dir", cfg.Paths.DataDir),
		zap.String("temp_dir", cfg.Paths.TempDir),
	)
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	metrics := monitoring.NewMetrics()

	var backendLauncher transport.Launcher
	if cfg.Backend.LaunchCommand != "" {
		l, err := launcher.New(launcher.Options{
			Command: cfg.Backend.LaunchCommand,
			Breaker: resilience.New("backend-launch", resilience.Settings{
				OnStateChange: func(name string, from, to resilience.State) {
					logger.Warn("launch breaker state changed",
						zap.String("breaker", name),
						zap.String("from", from.String()),
						zap.String("to", to.String()))
				},
			}),
			Logger: logger,
		})
		if err != nil {
			return err
		}
		defer l.Stop()
		backendLauncher = l
	}

	channel := transport.New(transport.Options{
		URL:               cfg.Backend.URL,
		ReconnectInterval: cfg.Backend.ReconnectInterval,
		DialTimeout:       cfg.Backend.DialTimeout,
		Launcher:          backendLauncher,
		Logger:            logger,
		Metrics:           metrics,
	})
	defer channel.Close()

	source := document.NewFileSource(cfg.Paths.DocumentPath, cfg.Paths.SelectionPath)
	pipeline := export.NewPipeline(source, imaging.NewEncoder(cfg.Export.JPEGQuality), export.Artifacts{
		RGBPath:     cfg.Paths.RGBArtifactPath(),
		InpaintPath: cfg.Paths.InpaintArtifactPath(),
	}, logger, metrics)

	catalog := workflow.NewCatalog(cfg.Paths.WorkflowDir, cfg.Paths.DefaultWorkflow)
	_, workflowPath := catalog.Current()
	mirror := status.NewMirror(cfg.Paths.StatusPath())

	machine := session.New(session.Options{
		Exporter:  pipeline,
		Sender:    channel,
		Status:    mirror,
		Selection: source,
		Prompts:   prompt.NewStore(cfg.Paths.PromptPath()),
		Notifier:  session.NewLogNotifier(logger),
		Context: session.Context{
			AutoQueue:         cfg.Session.AutoQueue,
			AdvancedPrompting: cfg.Session.AdvancedPrompting,
			Workflow:          workflowPath,
		},
		ResetDelay:   cfg.Session.ResetDelay,
		SavePreviews: cfg.Session.SavePreviews,
		PreviewRate:  cfg.Session.PreviewRate,
		ResultPath:   cfg.Paths.ResultPath(),
		PreviewPath:  cfg.Paths.PreviewPath(),
		Logger:       logger,
		Metrics:      metrics,
	})
	if err := mirror.Write(status.IdleRecord()); err != nil {
		return err
	}

	var wg sync.WaitGroup
	run := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	channel.Start(ctx)
	run(func() { machine.Run(ctx, channel.Messages()) })

	poller := status.NewPoller(mirror, cfg.Session.PollInterval, logger)
	statusLog := logger.Named("status")
	run(func() {
		poller.Run(ctx, func(rec status.Record) {
			statusLog.Debug("status", zap.String("status", rec.Status), zap.String("job_id", rec.JobID))
		})
	})

	if cfg.Paths.DocumentPath != "" {
		run(func() { source.Watch(ctx, cfg.Session.PollInterval, machine.MarkDocumentChanged) })
	}

	if cfg.Server.Enabled {
		srv := server.New(server.Options{
			Controller:  machine,
			Status:      mirror,
			Catalog:     catalog,
			Connection:  func() string { return channel.State().String() },
			Development: cfg.Logging.Development,
			Logger:      logger,
			Metrics:     metrics,
		})
		addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
		if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("HTTP server failed", zap.Error(err))
			return err
		}
	} else {
		<-ctx.Done()
	}

	logger.Info("Shutting down")
	wg.Wait()
	return nil
}
