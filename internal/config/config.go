// Package config resolves board settings from, in increasing priority:
// defaults, the user config file, the project config file, the environment
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

const (
	DefaultAPIURL    = "https://dummyjson.com/todos"
	DefaultLimit     = 0
	DefaultOwnerID   = 1
	DefaultTheme     = "classic"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultServeAddr = "127.0.0.1:8089"

	ProjectFileName = "kanban.toml"
)

type Config struct {
	APIURL string `toml:"api_url"`
	Token  string `toml:"token"`
	// Timeout bounds each API call; zero means no timeout.
	Timeout time.Duration `toml:"timeout"`
	// Limit is passed to GET /todos; zero lets the server decide.
	Limit   int    `toml:"limit"`
	OwnerID int    `toml:"owner_id"`
	Theme   string `toml:"theme"`

	Log   LogConfig   `toml:"log"`
	Serve ServeConfig `toml:"serve"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	File   string `toml:"file"`
	Format string `toml:"format"` // text | json
}

type ServeConfig struct {
	Addr     string  `toml:"addr"`
	DataFile string  `toml:"data_file"`
	FailRate float64 `toml:"fail_rate"`
}

func Defaults() Config {
	return Config{
		APIURL:  DefaultAPIURL,
		Limit:   DefaultLimit,
		OwnerID: DefaultOwnerID,
		Theme:   DefaultTheme,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Serve: ServeConfig{Addr: DefaultServeAddr},
	}
}

// Loader finds config files and environment values. The zero value uses the
// real user config dir, the working directory and os.Getenv.
type Loader struct {
	UserFile    string
	ProjectFile string
	Getenv      func(string) string
}

// Load resolves the configuration with the default Loader.
func Load(fs *pflag.FlagSet) (*Config, error) {
	return Loader{}.Load(fs)
}

func (l Loader) Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := Defaults()
	if l.Getenv == nil {
		l.Getenv = os.Getenv
	}

	user := l.UserFile
	if user == "" {
		user = findUserConfigFile()
	}
	if err := loadConfigFile(&cfg, user); err != nil {
		return nil, fmt.Errorf("loading user config file %s: %w", user, err)
	}

	project := l.ProjectFile
	if project == "" {
		project = findProjectConfigFile()
	}
	if fs != nil {
		if explicit, _ := fs.GetString("config"); explicit != "" {
			project = explicit
		}
	}
	if err := loadConfigFile(&cfg, project); err != nil {
		return nil, fmt.Errorf("loading project config file %s: %w", project, err)
	}

	if err := loadFromEnv(&cfg, l.Getenv); err != nil {
		return nil, err
	}
	if err := applyFlags(&cfg, fs); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIURL) == "" {
		errs = append(errs, errors.New("api_url must not be empty"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", c.Limit))
	}
	if c.OwnerID <= 0 {
		errs = append(errs, fmt.Errorf("owner_id must be positive, got %d", c.OwnerID))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Serve.FailRate < 0 || c.Serve.FailRate > 1 {
		errs = append(errs, fmt.Errorf("serve.fail_rate must be within [0,1], got %v", c.Serve.FailRate))
	}
	return errors.Join(errs...)
}

// loadConfigFile decodes path over cfg. A missing or empty path is skipped.
func loadConfigFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return fmt.Errorf("unknown keys: %v", undec)
	}
	return nil
}

func findUserConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "kanban", "config.toml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

func findProjectConfigFile() string {
	for _, name := range []string{ProjectFileName, "." + ProjectFileName} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func loadFromEnv(cfg *Config, getenv func(string) string) error {
	env := func(key string) (string, bool) {
		v := strings.TrimSpace(getenv(key))
		return v, v != ""
	}
	if v, ok := env("KANBAN_API_URL"); ok {
		cfg.APIURL = v
	}
	if v, ok := env("KANBAN_TOKEN"); ok {
		cfg.Token = v
	}
	if v, ok := env("KANBAN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KANBAN_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v, ok := env("KANBAN_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KANBAN_LIMIT: %w", err)
		}
		cfg.Limit = n
	}
	if v, ok := env("KANBAN_OWNER_ID"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KANBAN_OWNER_ID: %w", err)
		}
		cfg.OwnerID = n
	}
	if v, ok := env("KANBAN_THEME"); ok {
		cfg.Theme = v
	}
	if v, ok := env("KANBAN_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := env("KANBAN_LOG_FILE"); ok {
		cfg.Log.File = v
	}
	if v, ok := env("KANBAN_LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	return nil
}

// RegisterFlags adds the global flags read by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("config", "", "config file (default ./kanban.toml)")
	fs.String("api-url", d.APIURL, "todo API base URL")
	fs.Duration("timeout", d.Timeout, "per-request timeout (0 = none)")
	fs.Int("limit", d.Limit, "max todos to fetch (0 = server default)")
	fs.Int("owner", d.OwnerID, "owner id stamped on new todos")
	fs.String("theme", d.Theme, "colour theme (classic|neon|mono)")
	fs.String("log-level", d.Log.Level, "log level")
	fs.String("log-file", d.Log.File, "log file (default stderr, or ~/.kanban/board.log for the board)")
	fs.String("log-format", d.Log.Format, "log format (text|json)")
}

// applyFlags copies flags the user set explicitly.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}
	var err error
	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetInt(name)
		}
	}
	str("api-url", &cfg.APIURL)
	num("limit", &cfg.Limit)
	num("owner", &cfg.OwnerID)
	str("theme", &cfg.Theme)
	str("log-level", &cfg.Log.Level)
	str("log-file", &cfg.Log.File)
	str("log-format", &cfg.Log.Format)
	if err == nil && fs.Changed("timeout") {
		cfg.Timeout, err = fs.GetDuration("timeout")
	}
	return err
}
