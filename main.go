package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonbystrom/teamboard/internal/config"
	"github.com/simonbystrom/teamboard/internal/hub"
	"github.com/simonbystrom/teamboard/internal/server"
	"github.com/simonbystrom/teamboard/internal/team"
	"github.com/simonbystrom/teamboard/internal/ui"
	"github.com/simonbystrom/teamboard/internal/watch"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	port := flag.Int("port", 0, "HTTP port (overrides config and PORT)")
	teamsDir := flag.String("teams", "", "teams directory (defaults to ~/.claude/teams)")
	tasksDir := flag.String("tasks", "", "tasks directory (defaults to ~/.claude/tasks)")
	staticDir := flag.String("static", "", "directory served at /")
	tui := flag.Bool("tui", false, "run the terminal viewer alongside the server")
	configInit := flag.Bool("config-init", false, "write a default config file and exit")
	flag.Parse()

	if *configInit {
		path := config.Path()
		if err := config.WriteDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "error writing config: %v\n", err)
			return 1
		}
		fmt.Println(path)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *teamsDir != "" {
		cfg.Paths.TeamsDir = *teamsDir
	}
	if *tasksDir != "" {
		cfg.Paths.TasksDir = *tasksDir
	}
	if *staticDir != "" {
		cfg.Server.StaticDir = *staticDir
	}

	var logOut io.Writer = os.Stderr
	if *tui {
		f, err := tea.LogToFile(cfg.UI.LogFile, "teamboard")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(slog.New(newLogHandler(logOut, cfg.Server)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := team.NewReader(cfg.Paths.TeamsDir, cfg.Paths.TasksDir)
	agg := team.NewAggregator(reader)
	registry := hub.NewRegistry()

	startWatcher(ctx, cfg, registry)

	srv := server.NewServer(server.NewHandler(agg), registry, cfg.Server.Addr(), cfg.Server.StaticDir)
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("dashboard ready",
		"http", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		"ws", fmt.Sprintf("ws://localhost:%d", cfg.Server.Port),
		"teams", cfg.Paths.TeamsDir,
		"tasks", cfg.Paths.TasksDir,
	)

	exitCode := 0
	if *tui {
		if err := runViewer(ctx, cfg, agg, registry); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			exitCode = 1
		}
	} else {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				slog.Error("server failed", "error", err)
				exitCode = 1
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		exitCode = 1
	}
	return exitCode
}

// startWatcher pushes file changes to the registry until ctx is done. With
// neither directory present the server still answers queries.
func startWatcher(ctx context.Context, cfg config.Config, registry *hub.Registry) {
	w, err := watch.New(cfg.Paths.TeamsDir, cfg.Paths.TasksDir,
		watch.WithDepth(cfg.Watch.Depth),
		watch.WithStabilityThreshold(cfg.Watch.StabilityThresholdDuration()),
		watch.WithPollInterval(cfg.Watch.PollIntervalDuration()),
	)
	if errors.Is(err, watch.ErrNoWatchRoots) {
		slog.Warn("no directories to watch, live updates disabled",
			"teams", cfg.Paths.TeamsDir, "tasks", cfg.Paths.TasksDir)
		return
	}
	if err != nil {
		slog.Error("watcher failed to start, live updates disabled", "error", err)
		return
	}
	slog.Info("watching", "roots", w.Roots())

	go func() {
		defer w.Close()
		w.Run(ctx, func(ev watch.ChangeEvent) {
			if _, err := registry.Broadcast(hub.NewFileChanged(ev)); err != nil {
				slog.Warn("broadcast failed", "error", err)
			}
		})
	}()
}

func runViewer(ctx context.Context, cfg config.Config, src ui.Source, registry *hub.Registry) error {
	p := tea.NewProgram(ui.NewApp(cfg, src), tea.WithAltScreen(), tea.WithContext(ctx))

	obs := ui.NewObserver(p.Send)
	defer obs.Close()
	if err := registry.Connect(obs); err != nil {
		return fmt.Errorf("connect viewer: %w", err)
	}
	defer registry.Disconnect(obs)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func newLogHandler(w io.Writer, s config.Server) slog.Handler {
	opts := &slog.HandlerOptions{Level: s.SlogLevel()}
	if s.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
