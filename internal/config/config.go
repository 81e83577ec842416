package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/brogergvhs/mangapdf/internal/locator"

	"gopkg.in/yaml.v3"
)

var (
	formats      = []string{"pdf", "cbz"}
	storeDrivers = []string{"sqlite", "mongo", "mongodb"}
)

type StoreConfig struct {
	Driver        string `yaml:"driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type TelegramConfig struct {
	BotToken           string `yaml:"bot_token"`
	LogChannelID       string `yaml:"log_channel_id"`
	OwnerID            string `yaml:"owner_id"`
	PollTimeoutSeconds int    `yaml:"poll_timeout_seconds"`
}

type Config struct {
	Output     string `yaml:"output"`
	ScratchDir string `yaml:"scratch_dir"`
	Format     string `yaml:"format"`
	Strategy   string `yaml:"strategy"`

	ImageMarkers []string `yaml:"image_markers"`
	SourceAttrs  []string `yaml:"source_attrs"`
	AllowExt     []string `yaml:"allow_ext"`

	KeepScratch    bool   `yaml:"keep_scratch"`
	Debug          bool   `yaml:"debug"`
	LogFile        string `yaml:"log_file"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	UserAgent        string `yaml:"user_agent"`
	Cookie           string `yaml:"cookie"`
	CookieFile       string `yaml:"cookie_file"`
	CloudflareBypass bool   `yaml:"cloudflare_bypass"`

	RequireAuth bool           `yaml:"require_auth"`
	Store       StoreConfig    `yaml:"store"`
	Telegram    TelegramConfig `yaml:"telegram"`
}

type Options struct {
	IgnoreConfig bool
	// EnvFile is loaded before reading MANGAPDF_* variables. Empty means ".env".
	EnvFile string

	Debug            bool
	Output           string
	ScratchDir       string
	Format           string
	Strategy         string
	KeepScratch      bool
	LogFile          string
	TimeoutSeconds   int
	Cookie           string
	CookieFile       string
	UserAgent        string
	CloudflareBypass bool
}

func DefaultConfig() *Config {
	return &Config{
		Output:         ".",
		ScratchDir:     "",
		Format:         "pdf",
		Strategy:       "class-marker",
		ImageMarkers:   []string{"wp-manga-chapter-img", "img-responsive", "lazyload"},
		SourceAttrs:    []string{"src", "data-src"},
		AllowExt:       []string{"jpg", "jpeg", "png", "webp"},
		KeepScratch:    false,
		Debug:          false,
		TimeoutSeconds: 30,
		Store: StoreConfig{
			Driver:        "sqlite",
			MongoDatabase: "manga_db",
		},
		Telegram: TelegramConfig{
			PollTimeoutSeconds: 30,
		},
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged reads the active profile (or defaults), then applies .env and
// MANGAPDF_* variables, then CLI flags. The second return value describes
// where the config came from.
func LoadMerged(opts Options) (*Config, string, error) {
	var (
		cfg  *Config
		used string
	)

	if opts.IgnoreConfig {
		cfg, used = DefaultConfig(), "(ignored config)"
	} else {
		activePath, err := ActiveConfigPath()
		switch {
		case err == ErrNoConfig || activePath == "":
			cfg = DefaultConfig()
			used = "(default config in memory)\nRun `mangapdf config init` to create an actual config\n"
		case err != nil:
			return nil, "", err
		default:
			cfg, err = loadYAML(activePath)
			if err != nil {
				return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
			}
			used = activePath
		}
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("config %s: %w", firstLine(used), err)
	}

	return cfg, used, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.ScratchDir != "" {
		c.ScratchDir = o.ScratchDir
	}
	if o.Format != "" {
		c.Format = o.Format
	}
	if o.Strategy != "" {
		c.Strategy = o.Strategy
	}
	if o.KeepScratch {
		c.KeepScratch = true
	}
	if o.Debug {
		c.Debug = true
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}
	if o.TimeoutSeconds != 0 {
		c.TimeoutSeconds = o.TimeoutSeconds
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.CloudflareBypass {
		c.CloudflareBypass = true
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	if c.ScratchDir == "" {
		c.ScratchDir = filepath.Join(os.TempDir(), "mangapdf")
	}
	if c.Format == "" {
		c.Format = "pdf"
	}
	c.Format = strings.ToLower(c.Format)
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(ConfigRoot(), "mangapdf.db")
	}
	if c.Store.MongoDatabase == "" {
		c.Store.MongoDatabase = "manga_db"
	}
	if c.Telegram.PollTimeoutSeconds <= 0 {
		c.Telegram.PollTimeoutSeconds = 30
	}
}

// Validate checks the fields a run depends on. Empty values are fine; they
// fall back to defaults.
func (c *Config) Validate() error {
	var errs []error

	if f := strings.ToLower(strings.TrimSpace(c.Format)); f != "" && !slices.Contains(formats, f) {
		errs = append(errs, fmt.Errorf("format %q (available: %s)", c.Format, strings.Join(formats, ", ")))
	}
	if s := strings.ToLower(strings.TrimSpace(c.Strategy)); s != "" && !slices.Contains(locator.Names(), s) {
		errs = append(errs, fmt.Errorf("strategy %q (available: %s)", c.Strategy, strings.Join(locator.Names(), ", ")))
	}
	if d := strings.ToLower(strings.TrimSpace(c.Store.Driver)); d != "" && !slices.Contains(storeDrivers, d) {
		errs = append(errs, fmt.Errorf("store.driver %q (available: sqlite, mongo)", c.Store.Driver))
	}
	if c.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("timeout_seconds must not be negative, got %d", c.TimeoutSeconds))
	}
	if c.Telegram.PollTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("telegram.poll_timeout_seconds must not be negative, got %d", c.Telegram.PollTimeoutSeconds))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}

// Timeout bounds every HTTP request of a run.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *Config) Print(w io.Writer) {
	fmt.Fprintf(w, " -output: %s\n", c.Output)
	fmt.Fprintf(w, " -scratch_dir: %s\n", c.ScratchDir)
	fmt.Fprintf(w, " -format: %s\n", c.Format)
	if c.Strategy != "" {
		fmt.Fprintf(w, " -strategy: %s\n", c.Strategy)
	}
	if len(c.ImageMarkers) > 0 {
		fmt.Fprintf(w, " -image_markers: %s\n", strings.Join(c.ImageMarkers, ", "))
	}
	if len(c.SourceAttrs) > 0 {
		fmt.Fprintf(w, " -source_attrs: %s\n", strings.Join(c.SourceAttrs, ", "))
	}
	if len(c.AllowExt) > 0 {
		fmt.Fprintf(w, " -allow_ext: %s\n", strings.Join(c.AllowExt, ", "))
	}
	if c.KeepScratch {
		fmt.Fprintf(w, " -keep_scratch: %t\n", c.KeepScratch)
	}
	if c.Debug {
		fmt.Fprintf(w, " -debug: %t\n", c.Debug)
	}
	if c.LogFile != "" {
		fmt.Fprintf(w, " -log_file: %s\n", c.LogFile)
	}
	fmt.Fprintf(w, " -timeout_seconds: %d\n", c.TimeoutSeconds)
	if c.UserAgent != "" {
		fmt.Fprintf(w, " -user_agent: %s\n", c.UserAgent)
	}
	if c.Cookie != "" {
		fmt.Fprintf(w, " -cookie: %s\n", mask(c.Cookie))
	}
	if c.CookieFile != "" {
		fmt.Fprintf(w, " -cookie_file: %s\n", c.CookieFile)
	}
	if c.CloudflareBypass {
		fmt.Fprintf(w, " -cloudflare_bypass: %t\n", c.CloudflareBypass)
	}
	if c.RequireAuth {
		fmt.Fprintf(w, " -require_auth: %t\n", c.RequireAuth)
	}

	fmt.Fprintf(w, " -store.driver: %s\n", c.Store.Driver)
	switch c.Store.Driver {
	case "mongo", "mongodb":
		fmt.Fprintf(w, " -store.mongo_uri: %s\n", mask(c.Store.MongoURI))
		fmt.Fprintf(w, " -store.mongo_database: %s\n", c.Store.MongoDatabase)
	default:
		fmt.Fprintf(w, " -store.sqlite_path: %s\n", c.Store.SQLitePath)
	}

	if c.Telegram.BotToken != "" {
		fmt.Fprintf(w, " -telegram.bot_token: %s\n", mask(c.Telegram.BotToken))
	}
	if c.Telegram.LogChannelID != "" {
		fmt.Fprintf(w, " -telegram.log_channel_id: %s\n", c.Telegram.LogChannelID)
	}
	if c.Telegram.OwnerID != "" {
		fmt.Fprintf(w, " -telegram.owner_id: %s\n", c.Telegram.OwnerID)
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}

	return secret[:2] + strings.Repeat("*", 6) + secret[len(secret)-2:]
}
