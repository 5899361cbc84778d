package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/niklasbrandt/openzero/pkg/api"
	"github.com/niklasbrandt/openzero/pkg/bus"
	"github.com/niklasbrandt/openzero/pkg/config"
	"github.com/niklasbrandt/openzero/pkg/export"
	"github.com/niklasbrandt/openzero/pkg/state"
)

const defaultConfigPath = "config.yaml"

var (
	configPath  = flag.String("config", defaultConfigPath, "Path to configuration file")
	version     = flag.Bool("version", false, "Print version information")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	exportPath  = flag.String("export", "", "Export a month's agenda to the given .ics file and exit")
	exportMonth = flag.String("month", "", "Month to export as YYYY-MM (defaults to the current month)")
)

// Version information - can be set at build time
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	flag.Parse()

	if *version {
		printVersion()
		os.Exit(0)
	}

	app, err := NewApp(*configPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if *exportPath != "" {
		if err := app.Export(context.Background(), *exportPath, *exportMonth); err != nil {
			app.logger.Error("Export failed", "path", *exportPath, "error", err)
			os.Exit(1)
		}
		return
	}

	if err := app.Run(); err != nil {
		app.logger.Error("Calendar exited with error", "error", err)
		os.Exit(1)
	}
}

// App holds the main application components
type App struct {
	config   *config.Config
	logger   *slog.Logger
	client   *api.Client
	eventBus *bus.Bus
	bridge   *bus.Bridge
	notifier state.Notifier
}

// NewApp creates a new application instance
func NewApp(configPath string, debugMode bool) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Logging, debugMode)
	logger.Info("Starting calendar",
		"version", Version,
		"commit", GitCommit,
		"build_time", BuildTime,
		"config_path", configPath)

	client := api.NewClient(&api.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	}, logger)

	eventBus := bus.New(logger)

	app := &App{
		config:   cfg,
		logger:   logger,
		client:   client,
		eventBus: eventBus,
		notifier: eventBus,
	}

	// With a NATS URL configured, refresh broadcasts are relayed to sibling
	// dashboard processes; without one the bus stays in-process only.
	if cfg.NATS.URL != "" {
		natsConfig := bus.DefaultNATSConfig()
		natsConfig.URL = cfg.NATS.URL
		natsConfig.Subject = cfg.NATS.Subject

		bridge, err := bus.NewBridge(natsConfig, eventBus, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start NATS refresh bridge: %w", err)
		}
		app.bridge = bridge
		app.notifier = bridge
	}

	return app, nil
}

// Run starts the interactive calendar and blocks until it exits.
func (a *App) Run() error {
	relay := &programRelay{}

	controller := state.NewController(a.client, time.Now(), state.Options{
		Mutator:    a.client,
		Notifier:   a.notifier,
		OnSnapshot: func(res state.FetchResult) { relay.send(snapshotMsg{result: res}) },
		Logger:     a.logger,
	})

	unsubscribeRefresh := a.eventBus.Subscribe(bus.TopicRefreshData, func(payload any) {
		if refresh, ok := payload.(bus.Refresh); ok {
			relay.send(busRefreshMsg{refresh: refresh})
		}
	})
	defer unsubscribeRefresh()

	unsubscribeOpen := a.eventBus.Subscribe(bus.TopicOpenCalendar, func(payload any) {
		relay.send(busOpenMsg{})
	})
	defer unsubscribeOpen()

	m := newModel(controller, a.config.Agenda, a.logger)
	program := tea.NewProgram(m, tea.WithAltScreen())
	relay.attach(program)

	_, err := program.Run()
	controller.Cancel()
	return err
}

// Export fetches one month from the backend and writes it as iCalendar text.
// The month defaults to the current one and may be overridden as YYYY-MM.
func (a *App) Export(ctx context.Context, path, month string) error {
	now := time.Now()
	year, viewMonth := now.Year(), now.Month()
	if month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return fmt.Errorf("invalid month %q, expected YYYY-MM: %w", month, err)
		}
		year, viewMonth = parsed.Year(), parsed.Month()
	}

	events, err := a.client.ListMonth(ctx, year, viewMonth)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	title := fmt.Sprintf("%s %d", viewMonth, year)
	if err := export.WriteMonth(file, year, viewMonth, title, events); err != nil {
		return err
	}

	a.logger.Info("Exported month",
		"path", path,
		"year", year,
		"month", int(viewMonth),
		"event_count", len(events))
	return nil
}

// Close releases the NATS bridge, if one was started.
func (a *App) Close() {
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			a.logger.Error("Error closing NATS refresh bridge", "error", err)
		}
	}
}

// setupLogger configures the application logger
func setupLogger(cfg config.LoggingConfig, debugMode bool) *slog.Logger {
	var level slog.Level

	// Override config level if debug mode is enabled
	if debugMode {
		level = slog.LevelDebug
	} else {
		switch cfg.Level {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	// Logs go to stderr so they never interleave with the terminal UI.
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("openzero-cal %s\n", Version)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Build Time: %s\n", BuildTime)
}
