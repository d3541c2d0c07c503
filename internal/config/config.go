package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval      = 6 * time.Minute
	DefaultStateFile         = "averages.csv"
	DefaultMinimumListeners  = 15
	DefaultSourceTimeout     = 10 * time.Second
	DefaultWebhookTimeout    = 5 * time.Second
	DefaultNotifyRateLimit   = 5.0
	DefaultHistoryPath       = "feedwatch.db"
	DefaultHistoryRetention  = 30 * 24 * time.Hour
	DefaultPruneInterval     = time.Hour
	DefaultListenAddr        = ":8080"
	DefaultBroadcastInterval = 5 * time.Second
	DefaultStatusTTL         = 30 * time.Minute
)

// Sort orders for notification batches.
const (
	SortAscending  = "ascending"
	SortDescending = "descending"
)

// Config is the top-level configuration for the feedwatch daemon.
// Fields map 1:1 to feedwatch.example.yaml.
type Config struct {
	// PollInterval controls how often all sources are polled for one
	// detection cycle.
	PollInterval time.Duration `yaml:"poll_interval"`

	// StateFile is the path of the registry snapshot that carries per-feed
	// hourly baselines across restarts.
	StateFile string `yaml:"state_file"`

	// MinimumListeners drops feeds below this count before detection.
	MinimumListeners int `yaml:"minimum_listeners"`

	// Sort orders each cycle's notification batch by listener count:
	// ascending | descending.
	Sort string `yaml:"sort"`

	// Detector holds the spike-detection tuning constants.
	Detector Detector `yaml:"detector"`

	// Sources is the list of feed directories to poll.
	Sources []Source `yaml:"sources"`

	// Notify configures webhook delivery of spike events.
	Notify Notify `yaml:"notify"`

	// History configures the spike history database.
	History History `yaml:"history"`

	// Server configures the status API, WebSocket stream and metrics.
	Server Server `yaml:"server"`
}

// Detector holds the numeric constants of the spike detection state machine.
type Detector struct {
	// SpikeBase is the base fraction of the raw value that a jump over the
	// moving average must reach to count as a spike.
	SpikeBase float64 `yaml:"spike_base"`

	// LowValueSensitivity raises the threshold for feeds under 50 listeners,
	// per listener of shortfall.
	LowValueSensitivity float64 `yaml:"low_value_sensitivity"`

	// DecayRate and DecayPeriod lower the threshold for fast-rising feeds:
	// the threshold drops by DecayRate per DecayPeriod of baseline delta.
	DecayRate   float64 `yaml:"decay_rate"`
	DecayPeriod float64 `yaml:"decay_period"`

	// ResetFraction ends a baseline correction once the live average is back
	// within this fraction of the corrective baseline.
	ResetFraction float64 `yaml:"reset_fraction"`

	// AdjustFraction is the per-cycle step that walks the corrective
	// baseline toward the live average.
	AdjustFraction float64 `yaml:"adjust_fraction"`

	// RequiredStreak is the consecutive-spike count that must be exceeded
	// before a correction starts.
	RequiredStreak int `yaml:"required_streak"`
}

// Source describes one feed directory to poll.
type Source struct {
	// Name is a unique, human-readable identifier for this source.
	Name string `yaml:"name"`

	// Type is the directory protocol: directory | prometheus.
	Type string `yaml:"type"`

	// URL is the full URL of the source's listing or metrics endpoint.
	URL string `yaml:"url"`

	// Timeout bounds one scrape of this source.
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures how the poller authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`

	// Metric and AlertMetric override the metric family names read from a
	// prometheus source. Ignored for directory sources.
	Metric      string `yaml:"metric"`
	AlertMetric string `yaml:"alert_metric"`
}

// AuthConfig specifies the authentication mode for a source.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// API key fields, used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// Bearer token fields, used when Mode == "bearer".
	// TokenEnv is the name of the environment variable that holds the token.
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	// Username is the literal username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Notify configures webhook fan-out of spike events.
type Notify struct {
	// RateLimit caps webhook posts per second across all targets, so one
	// wide spike cannot flood a channel.
	RateLimit float64 `yaml:"rate_limit"`

	// Webhooks is the list of delivery targets.
	Webhooks []Webhook `yaml:"webhooks"`
}

// Webhook defines one webhook delivery target.
type Webhook struct {
	// Name identifies the target in logs and metrics.
	Name string `yaml:"name"`

	// Type is one of: slack | discord | http.
	Type string `yaml:"type"`

	// URL is the literal webhook URL. Prefer URLEnv for secret-bearing URLs.
	URL string `yaml:"url"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	// When set and resolvable it takes precedence over URL.
	URLEnv string `yaml:"url_env"`

	// TokenEnv names an environment variable holding a bearer token sent
	// with http-type deliveries.
	TokenEnv string `yaml:"token_env"`

	// Timeout bounds one delivery attempt.
	Timeout time.Duration `yaml:"timeout"`
}

// ResolvedURL returns the delivery URL, preferring the environment variable.
func (w Webhook) ResolvedURL() string {
	if w.URLEnv != "" {
		if v := os.Getenv(w.URLEnv); v != "" {
			return v
		}
	}
	return w.URL
}

// Token returns the bearer token resolved from the environment.
func (w Webhook) Token() string {
	if w.TokenEnv == "" {
		return ""
	}
	return os.Getenv(w.TokenEnv)
}

// History configures the spike history database.
type History struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`

	// Retention is how long spike rows are kept before pruning.
	Retention time.Duration `yaml:"retention"`

	// PruneInterval is how often the retention pass runs.
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// Server configures the HTTP surface: REST API, WebSocket stream, metrics.
type Server struct {
	// Listen is the address the HTTP server binds, e.g. ":8080".
	Listen string `yaml:"listen"`

	// APIKeyEnv names the environment variable holding the API key required
	// on /api/ routes. Auth is disabled when unset or unresolvable.
	APIKeyEnv string `yaml:"api_key_env"`

	// BroadcastInterval is how often the WebSocket hub pushes snapshots.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// StatusTTL evicts feeds from the status store that have not been seen
	// for this long.
	StatusTTL time.Duration `yaml:"status_ttl"`
}

// APIKey returns the API key resolved from the environment.
func (s Server) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	applyFieldDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		PollInterval:     DefaultPollInterval,
		StateFile:        DefaultStateFile,
		MinimumListeners: DefaultMinimumListeners,
		Sort:             SortDescending,
		Detector: Detector{
			SpikeBase:           0.3,
			LowValueSensitivity: 0.005,
			DecayRate:           0.02,
			DecayPeriod:         100,
			ResetFraction:       0.05,
			AdjustFraction:      0.1,
			RequiredStreak:      2,
		},
		Notify: Notify{
			RateLimit: DefaultNotifyRateLimit,
		},
		History: History{
			Path:          DefaultHistoryPath,
			Retention:     DefaultHistoryRetention,
			PruneInterval: DefaultPruneInterval,
		},
		Server: Server{
			Listen:            DefaultListenAddr,
			BroadcastInterval: DefaultBroadcastInterval,
			StatusTTL:         DefaultStatusTTL,
		},
	}
}

// applyFieldDefaults fills per-entry defaults that yaml decoding cannot,
// because list entries start from zero values rather than from defaults().
func applyFieldDefaults(cfg *Config) {
	for i := range cfg.Sources {
		if cfg.Sources[i].Timeout <= 0 {
			cfg.Sources[i].Timeout = DefaultSourceTimeout
		}
	}
	for i := range cfg.Notify.Webhooks {
		if cfg.Notify.Webhooks[i].Timeout <= 0 {
			cfg.Notify.Webhooks[i].Timeout = DefaultWebhookTimeout
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if cfg.StateFile == "" {
		return fmt.Errorf("state_file is required")
	}
	if cfg.MinimumListeners < 0 {
		return fmt.Errorf("minimum_listeners must not be negative")
	}
	switch cfg.Sort {
	case SortAscending, SortDescending:
	default:
		return fmt.Errorf("sort: unknown order %q", cfg.Sort)
	}

	if err := validateDetector(cfg.Detector); err != nil {
		return err
	}

	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	for i, src := range cfg.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if src.URL == "" {
			return fmt.Errorf("sources[%d] %q: url is required", i, src.Name)
		}
		switch src.Type {
		case "directory", "prometheus":
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.Name, src.Type)
		}
		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.Name, src.Auth.Mode)
		}
	}

	if cfg.Notify.RateLimit <= 0 {
		return fmt.Errorf("notify.rate_limit must be positive")
	}
	for i, wh := range cfg.Notify.Webhooks {
		switch wh.Type {
		case "slack", "discord", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d] %q: unknown type %q", i, wh.Name, wh.Type)
		}
		if wh.URL == "" && wh.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d] %q: url or url_env is required", i, wh.Name)
		}
	}

	if cfg.History.Path == "" {
		return fmt.Errorf("history.path is required")
	}
	if cfg.History.Retention <= 0 {
		return fmt.Errorf("history.retention must be positive")
	}
	if cfg.History.PruneInterval <= 0 {
		return fmt.Errorf("history.prune_interval must be positive")
	}

	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	if cfg.Server.StatusTTL <= 0 {
		return fmt.Errorf("server.status_ttl must be positive")
	}

	return nil
}

// validateDetector bounds-checks the detection constants.
func validateDetector(d Detector) error {
	if d.SpikeBase <= 0 || d.SpikeBase > 1 {
		return fmt.Errorf("detector.spike_base must be in (0, 1]")
	}
	if d.LowValueSensitivity < 0 {
		return fmt.Errorf("detector.low_value_sensitivity must not be negative")
	}
	if d.DecayRate < 0 {
		return fmt.Errorf("detector.decay_rate must not be negative")
	}
	if d.DecayPeriod <= 0 {
		return fmt.Errorf("detector.decay_period must be positive")
	}
	if d.ResetFraction <= 0 || d.ResetFraction > 1 {
		return fmt.Errorf("detector.reset_fraction must be in (0, 1]")
	}
	if d.AdjustFraction <= 0 || d.AdjustFraction > 1 {
		return fmt.Errorf("detector.adjust_fraction must be in (0, 1]")
	}
	if d.RequiredStreak < 0 || d.RequiredStreak > 255 {
		return fmt.Errorf("detector.required_streak must be in [0, 255]")
	}
	return nil
}
