// Package config loads and validates eventwatch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Proximity policies accepted by classifier.proximity_policy.
const (
	PolicyRequireAction = "require_action"
	PolicyEventNoun     = "event_noun"
)

// Store backends accepted by store.backend.
const (
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tracked    TrackedConfig    `mapstructure:"tracked"`
	Harvest    HarvestConfig    `mapstructure:"harvest"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Store      StoreConfig      `mapstructure:"store"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Sources    []SourceConfig   `mapstructure:"sources"`
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// TrackedConfig names the person whose events are watched.
type TrackedConfig struct {
	FirstName string `mapstructure:"first_name"`
	Surname   string `mapstructure:"surname"`
}

// FullName joins the first name and surname.
func (t TrackedConfig) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.Surname)
}

// HarvestConfig governs page acquisition and fan-out.
type HarvestConfig struct {
	// Concurrency of zero sizes the pool from the CPU count.
	Concurrency        int           `mapstructure:"concurrency"`
	MaxWorkers         int           `mapstructure:"max_workers"`
	UserAgent          string        `mapstructure:"user_agent"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	WaitTimeout        time.Duration `mapstructure:"wait_timeout"`
	HeadlessEnabled    bool          `mapstructure:"headless_enabled"`
	MaxParallelRenders int           `mapstructure:"max_parallel_renders"`
}

// ClassifierConfig tunes the involvement heuristic.
type ClassifierConfig struct {
	ProximityPolicy string `mapstructure:"proximity_policy"`
}

// StoreConfig selects where the notified set and snapshot live.
type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	Dir           string `mapstructure:"dir"`
	NotifiedKey   string `mapstructure:"notified_key"`
	SnapshotKey   string `mapstructure:"snapshot_key"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	NotifiedTable string `mapstructure:"notified_table"`
	SnapshotTable string `mapstructure:"snapshot_table"`
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	Sender         string       `mapstructure:"sender"`
	Subject        string       `mapstructure:"subject"`
	RecipientsFile string       `mapstructure:"recipients_file"`
	Email          EmailConfig  `mapstructure:"email"`
	PubSub         PubSubConfig `mapstructure:"pubsub"`
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	KeyringService string `mapstructure:"keyring_service"`
	ImplicitTLS    bool   `mapstructure:"implicit_tls"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// WatchConfig controls scheduled operation.
type WatchConfig struct {
	Schedule   string `mapstructure:"schedule"`
	ListenAddr string `mapstructure:"listen_addr"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// SourceConfig overrides one row of the source registry.
type SourceConfig struct {
	ID          string        `mapstructure:"id"`
	URL         string        `mapstructure:"url"`
	Container   string        `mapstructure:"container"`
	Title       string        `mapstructure:"title"`
	Description string        `mapstructure:"description"`
	Link        string        `mapstructure:"link"`
	BaseURL     string        `mapstructure:"base_url"`
	Render      *RenderConfig `mapstructure:"render"`
}

// RenderConfig is the config form of a render profile.
type RenderConfig struct {
	Ready   string       `mapstructure:"ready"`
	Stealth bool         `mapstructure:"stealth"`
	Steps   []StepConfig `mapstructure:"steps"`
}

// StepConfig is one click-then-wait interaction.
type StepConfig struct {
	Click string `mapstructure:"click"`
	Wait  string `mapstructure:"wait"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EVENTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("tracked.first_name", "Cate")
	v.SetDefault("tracked.surname", "Blanchett")
	v.SetDefault("harvest.concurrency", 0)
	v.SetDefault("harvest.max_workers", 16)
	v.SetDefault("harvest.user_agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	v.SetDefault("harvest.request_timeout", 20*time.Second)
	v.SetDefault("harvest.wait_timeout", 20*time.Second)
	v.SetDefault("harvest.headless_enabled", true)
	v.SetDefault("harvest.max_parallel_renders", 2)
	v.SetDefault("classifier.proximity_policy", PolicyRequireAction)
	v.SetDefault("store.backend", BackendLocal)
	v.SetDefault("store.dir", "data")
	v.SetDefault("store.notified_key", "notified_event_urls.json")
	v.SetDefault("store.snapshot_key", "cate_blanchett_events.json")
	v.SetDefault("store.notified_table", "notified_urls")
	v.SetDefault("store.snapshot_table", "event_snapshot")
	v.SetDefault("notify.recipients_file", "recipients.json")
	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.keyring_service", "eventwatch")
	v.SetDefault("watch.schedule", "@every 6h")
	v.SetDefault("watch.listen_addr", ":9090")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Tracked.FirstName) == "" || strings.TrimSpace(c.Tracked.Surname) == "" {
		return fmt.Errorf("tracked.first_name and tracked.surname must be set")
	}
	if c.Harvest.Concurrency < 0 {
		return fmt.Errorf("harvest.concurrency must be >= 0")
	}
	if c.Harvest.MaxWorkers <= 0 {
		return fmt.Errorf("harvest.max_workers must be > 0")
	}
	if c.Harvest.RequestTimeout <= 0 {
		return fmt.Errorf("harvest.request_timeout must be > 0")
	}
	if c.Harvest.WaitTimeout <= 0 {
		return fmt.Errorf("harvest.wait_timeout must be > 0")
	}
	if c.Harvest.HeadlessEnabled && c.Harvest.MaxParallelRenders <= 0 {
		return fmt.Errorf("harvest.max_parallel_renders must be > 0 when headless is enabled")
	}
	switch c.Classifier.ProximityPolicy {
	case PolicyRequireAction, PolicyEventNoun:
	default:
		return fmt.Errorf("classifier.proximity_policy must be %q or %q", PolicyRequireAction, PolicyEventNoun)
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if c.Notify.Email.Enabled {
		if c.Notify.Email.Host == "" || c.Notify.Email.Port <= 0 {
			return fmt.Errorf("notify.email.host and notify.email.port must be set when email is enabled")
		}
		if c.Notify.Sender == "" {
			return fmt.Errorf("notify.sender must be set when email is enabled")
		}
	}
	if c.Notify.PubSub.Enabled && (c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.TopicID == "") {
		return fmt.Errorf("notify.pubsub.project_id and notify.pubsub.topic_id must be set when pubsub is enabled")
	}
	return nil
}

func (s StoreConfig) validate() error {
	switch s.Backend {
	case BackendLocal:
		if strings.TrimSpace(s.Dir) == "" {
			return fmt.Errorf("store.dir must be set for the local backend")
		}
	case BackendGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("store.gcs_bucket must be set for the gcs backend")
		}
	case BackendPostgres:
		if s.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn must be set for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend %q is not supported", s.Backend)
	}
	if s.Backend != BackendPostgres && (s.NotifiedKey == "" || s.SnapshotKey == "") {
		return fmt.Errorf("store.notified_key and store.snapshot_key must be set")
	}
	return nil
}
