package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Source    SourceConfig    `mapstructure:"source"`
	Cluster   ClusterConfig   `mapstructure:"cluster"`
	Index     IndexConfig     `mapstructure:"index"`
	Map       MapConfig       `mapstructure:"map"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr     string `mapstructure:"addr"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	Cron      string `mapstructure:"cron"`
}

// SourceConfig points at the EONET v3 events API.
type SourceConfig struct {
	EONETURL      string        `mapstructure:"eonet_url"`
	Category      string        `mapstructure:"category"`
	Status        string        `mapstructure:"status"`
	Days          int           `mapstructure:"days"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ClusterConfig struct {
	MinZoom   int     `mapstructure:"min_zoom"`
	MaxZoom   int     `mapstructure:"max_zoom"`
	MinPoints int     `mapstructure:"min_points"`
	Radius    float64 `mapstructure:"radius"`
	Extent    float64 `mapstructure:"extent"`
	NodeMin   int     `mapstructure:"node_min"`
	NodeMax   int     `mapstructure:"node_max"`
}

type IndexConfig struct {
	RebuildDebounce time.Duration `mapstructure:"rebuild_debounce"`
}

type MapConfig struct {
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLng float64 `mapstructure:"center_lng"`
	Zoom      int     `mapstructure:"zoom"`
}

type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: WILDFIRE_DATABASE_HOST → database.host
	v.SetEnvPrefix("WILDFIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "wildfire")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "wildfire")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.cache_ttl", 300)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "wildfire-refresh")
	v.SetDefault("temporal.cron", "*/15 * * * *")
	v.SetDefault("source.eonet_url", "https://eonet.gsfc.nasa.gov/api/v3")
	v.SetDefault("source.category", "wildfires")
	v.SetDefault("source.status", "open")
	v.SetDefault("source.days", 0)
	v.SetDefault("source.poll_interval", 15*time.Minute)
	v.SetDefault("source.rate_per_second", 1.0)
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("cluster.min_zoom", 0)
	v.SetDefault("cluster.max_zoom", 16)
	v.SetDefault("cluster.min_points", 2)
	v.SetDefault("cluster.radius", 60)
	v.SetDefault("cluster.extent", 512)
	v.SetDefault("cluster.node_min", 25)
	v.SetDefault("cluster.node_max", 50)
	v.SetDefault("index.rebuild_debounce", 2*time.Second)
	v.SetDefault("map.center_lat", 42.3265)
	v.SetDefault("map.center_lng", -122.8756)
	v.SetDefault("map.zoom", 6)
	v.SetDefault("snapshot.path", "./data/events.json.zst")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Source.EONETURL == "" {
		errs = append(errs, "source.eonet_url is required")
	}
	if c.Source.Category == "" {
		errs = append(errs, "source.category is required")
	}
	if c.Source.PollInterval <= 0 {
		errs = append(errs, "source.poll_interval must be positive")
	}
	if c.Source.RatePerSecond <= 0 {
		errs = append(errs, "source.rate_per_second must be positive")
	}
	if c.Cluster.MinZoom < 0 || c.Cluster.MaxZoom < c.Cluster.MinZoom || c.Cluster.MaxZoom > 24 {
		errs = append(errs, fmt.Sprintf("cluster zoom range must satisfy 0 <= min_zoom <= max_zoom <= 24, got %d..%d",
			c.Cluster.MinZoom, c.Cluster.MaxZoom))
	}
	if c.Cluster.MinPoints < 2 {
		errs = append(errs, "cluster.min_points must be at least 2")
	}
	if c.Cluster.Radius <= 0 || c.Cluster.Extent <= 0 {
		errs = append(errs, "cluster.radius and cluster.extent must be positive")
	}
	if c.Cluster.NodeMin <= 0 || c.Cluster.NodeMax <= c.Cluster.NodeMin {
		errs = append(errs, "cluster.node_max must exceed cluster.node_min > 0")
	}
	if c.Index.RebuildDebounce < 0 {
		errs = append(errs, "index.rebuild_debounce must not be negative")
	}
	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 {
		errs = append(errs, fmt.Sprintf("map.center_lat must be within [-90, 90], got %g", c.Map.CenterLat))
	}
	if c.Map.Zoom < 0 {
		errs = append(errs, "map.zoom must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
