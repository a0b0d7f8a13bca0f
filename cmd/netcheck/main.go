package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WangYihang/netcheck/pkg/common"
	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/WangYihang/netcheck/pkg/infrastructure/metrics"
	"github.com/WangYihang/netcheck/pkg/interface/cli"
	"github.com/WangYihang/netcheck/pkg/interface/presenter"
	"github.com/WangYihang/netcheck/pkg/interface/web"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Parse command line flags
	opts, command, err := cli.ParseFlags(os.Args[1:])
	if err != nil {
		// go-flags has already printed its own parse errors
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	// Handle interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		err = serve(ctx, &opts.Serve)
	case "check":
		err = check(ctx, &opts.Check)
	case "version":
		fmt.Println(common.PV.String())
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, opts *cli.ServeOptions) error {
	cfg := opts.Config()

	// The dashboard owns the terminal, keep logs out of it
	var logOutput io.Writer = os.Stderr
	if cfg.Server.ShowDashboard {
		logOutput = io.Discard
	}
	logger := common.NewLogger(logOutput, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	assembler := cli.NewAssembler(cfg, logger)
	svc, err := assembler.AssembleService()
	if err != nil {
		return err
	}
	defer func() {
		if err := assembler.SaveState(); err != nil {
			logger.Error("failed to save client filter", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := web.NewHandler(web.Config{
		TrustProxyHeader: cfg.Server.TrustProxyHeader,
		Logger:           logger,
	}, svc.UseCase, svc.Keys)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.Serve(ctx, cfg.Server.Listen, handler.Routes(), logger)
	})

	if cfg.Server.MetricsListen != "" {
		exporter := metrics.NewExporter(svc.UseCase)
		svc.UseCase.RegisterProbeObserver(exporter)
		g.Go(func() error {
			return exporter.Serve(ctx, cfg.Server.MetricsListen)
		})
	}

	// Setup dashboard if enabled
	if cfg.Server.ShowDashboard {
		dashboard := presenter.NewDashboard(cfg.Server.Listen)
		svc.UseCase.RegisterMetricsObserver(dashboard)

		p := tea.NewProgram(dashboard, tea.WithAltScreen(), tea.WithContext(ctx))
		g.Go(func() error {
			_, err := p.Run()
			// Quitting the dashboard stops the server
			cancel()
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		})
	}

	logger.Info("netcheck started",
		"version", common.PV.Short(),
		"listen", cfg.Server.Listen,
		"metrics", cfg.Server.MetricsListen,
		"ping", cfg.Ping.Enabled,
		"rate_max", cfg.RateLimit.MaxRequests,
		"rate_window", cfg.RateLimit.Window,
	)

	err = g.Wait()
	logger.Info("netcheck stopped")
	return err
}

func check(ctx context.Context, opts *cli.CheckOptions) error {
	cfg := opts.Config()
	logger := common.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	useCase := cli.NewAssembler(cfg, logger).AssembleLocal()

	ping := ""
	if opts.Ping {
		ping = "1"
	}
	req, err := useCase.Validate(entity.RawRequest{
		Host:    opts.Host,
		Port:    opts.Port,
		Timeout: opts.Timeout,
		Ping:    ping,
	})
	if err != nil {
		return err
	}

	if opts.JSON {
		report := useCase.Diagnose(ctx, req)
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	progress := presenter.NewProbeProgress(os.Stderr, common.TerminalWidth/2)
	useCase.RegisterProbeObserver(progress)
	report := useCase.Diagnose(ctx, req)
	progress.Wait()

	presenter.RenderReport(os.Stdout, report, common.TerminalWidth)
	return nil
}
