package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Colors holds color values for the terminal viewer.
// Values can be xterm-256 codes (0-255) or hex colors (#rrggbb).
type Colors struct {
	Title        string `toml:"title"`
	Header       string `toml:"header"`
	SelectedBG   string `toml:"selected_bg"`
	SelectedFG   string `toml:"selected_fg"`
	Active       string `toml:"active"`
	Recent       string `toml:"recent"`
	Stale        string `toml:"stale"`
	Unread       string `toml:"unread"`
	Notification string `toml:"notification"`
	Help         string `toml:"help"`
	Border       string `toml:"border"`
	Error        string `toml:"error"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Port      int    `toml:"port"`
	StaticDir string `toml:"static_dir"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Paths holds the directories written by Claude Code.
type Paths struct {
	TeamsDir string `toml:"teams_dir"`
	TasksDir string `toml:"tasks_dir"`
}

// Watch holds change-watcher tuning.
type Watch struct {
	Depth              int `toml:"depth"`
	StabilityThreshold int `toml:"stability_threshold_ms"`
	PollInterval       int `toml:"poll_interval_ms"`
}

// UI holds terminal viewer settings.
type UI struct {
	RefreshInterval int    `toml:"refresh_interval_ms"`
	LogFile         string `toml:"log_file"`
}

// Config is the top-level configuration.
type Config struct {
	Server Server `toml:"server"`
	Paths  Paths  `toml:"paths"`
	Watch  Watch  `toml:"watch"`
	UI     UI     `toml:"ui"`
	Colors Colors `toml:"colors"`
}

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Server: Server{
			Port:      4747,
			LogLevel:  "info",
			LogFormat: "text",
		},
		Paths: Paths{
			TeamsDir: filepath.Join(home, ".claude", "teams"),
			TasksDir: filepath.Join(home, ".claude", "tasks"),
		},
		Watch: Watch{
			Depth:              4,
			StabilityThreshold: 300,
			PollInterval:       100,
		},
		UI: UI{
			RefreshInterval: 2000,
			LogFile:         filepath.Join(os.TempDir(), "teamboard.log"),
		},
		Colors: Colors{
			Title:        "#cba6f7", // Mauve
			Header:       "#89b4fa", // Blue
			SelectedBG:   "#313244", // Surface 0
			SelectedFG:   "#cdd6f4", // Text
			Active:       "#a6e3a1", // Green
			Recent:       "#f9e2af", // Yellow
			Stale:        "#7f849c", // Overlay 1
			Unread:       "#fab387", // Peach
			Notification: "#a6adc8", // Subtext 0
			Help:         "#7f849c", // Overlay 1
			Border:       "#585b70", // Surface 2
			Error:        "#f38ba8", // Red
		},
	}
}

// StabilityThresholdDuration returns the watcher quiescence window.
func (w Watch) StabilityThresholdDuration() time.Duration {
	return time.Duration(w.StabilityThreshold) * time.Millisecond
}

// PollIntervalDuration returns the watcher poll interval.
func (w Watch) PollIntervalDuration() time.Duration {
	return time.Duration(w.PollInterval) * time.Millisecond
}

// RefreshIntervalDuration returns the viewer's periodic re-pull interval.
func (u UI) RefreshIntervalDuration() time.Duration {
	return time.Duration(u.RefreshInterval) * time.Millisecond
}

// Addr returns the listen address for the HTTP server.
func (s Server) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// SlogLevel maps LogLevel onto slog levels, defaulting to info.
func (s Server) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Path returns the config file path, respecting XDG_CONFIG_HOME.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "teamboard", "teamboard.conf")
}

// Load reads .env, the config file at Path and environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFile(Path())
}

// LoadFile reads the config file at path and applies environment
// overrides. Omitted fields keep their default values. A missing file is
// not an error.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Paths.TeamsDir = expandHome(cfg.Paths.TeamsDir)
	cfg.Paths.TasksDir = expandHome(cfg.Paths.TasksDir)
	cfg.Server.StaticDir = expandHome(cfg.Server.StaticDir)
	return cfg, nil
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	cfg.Paths.TeamsDir = getEnv("TEAMBOARD_TEAMS_DIR", cfg.Paths.TeamsDir)
	cfg.Paths.TasksDir = getEnv("TEAMBOARD_TASKS_DIR", cfg.Paths.TasksDir)
	cfg.Server.StaticDir = getEnv("TEAMBOARD_STATIC_DIR", cfg.Server.StaticDir)
	cfg.Server.LogLevel = getEnv("TEAMBOARD_LOG_LEVEL", cfg.Server.LogLevel)
	cfg.Server.LogFormat = getEnv("TEAMBOARD_LOG_FORMAT", cfg.Server.LogFormat)
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

const defaultFileContent = `# Teamboard configuration
# Uncomment and modify values to customize. All values are optional.
# Environment variables PORT, TEAMBOARD_TEAMS_DIR, TEAMBOARD_TASKS_DIR,
# TEAMBOARD_STATIC_DIR, TEAMBOARD_LOG_LEVEL and TEAMBOARD_LOG_FORMAT
# override this file; a .env file in the working directory is read first.

[server]
# port       = 4747
# static_dir = ""       # directory served at / (empty disables it)
# log_level  = "info"   # debug, info, warn, error
# log_format = "text"   # text or json

[paths]
# teams_dir = "~/.claude/teams"
# tasks_dir = "~/.claude/tasks"

[watch]
# depth                  = 4     # directory levels watched below each root
# stability_threshold_ms = 300   # a file must be unchanged this long before it is reported
# poll_interval_ms       = 100

[ui]
# refresh_interval_ms = 2000
# log_file            = "/tmp/teamboard.log"

[colors]
# title        = "#cba6f7"  # Mauve
# header       = "#89b4fa"  # Blue
# selected_bg  = "#313244"  # Surface 0
# selected_fg  = "#cdd6f4"  # Text
# active       = "#a6e3a1"  # Green
# recent       = "#f9e2af"  # Yellow
# stale        = "#7f849c"  # Overlay 1
# unread       = "#fab387"  # Peach
# notification = "#a6adc8"  # Subtext 0
# help         = "#7f849c"  # Overlay 1
# border       = "#585b70"  # Surface 2
# error        = "#f38ba8"  # Red
`

// WriteDefault writes the default config file with all values commented out.
// It no-ops if the file already exists. Parent directories are created as needed.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // file already exists
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(defaultFileContent), 0o644)
}
