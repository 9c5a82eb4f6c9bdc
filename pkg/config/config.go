package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"5000" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"420s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		// Collector aggregates repeated errors and flushes them periodically.
		Collector struct {
			Enabled  bool          `yaml:"enabled"`
			Interval time.Duration `yaml:"interval" default:"1m"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Store struct {
		Backend string `yaml:"backend" default:"file" validate:"oneof=file redis sqlite clickhouse memory"`
		Path    string `yaml:"path" default:"data/omnispectrum.json"`
		Redis   struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size" default:"10"`
			Prefix   string `yaml:"prefix" default:"omnispectrum"`
		} `yaml:"redis"`
		SQLite struct {
			DSN string `yaml:"dsn" default:"data/omnispectrum.db"`
		} `yaml:"sqlite"`
		ClickHouse struct {
			Host         string        `yaml:"host" default:"localhost"`
			Port         int           `yaml:"port" default:"9000"`
			Database     string        `yaml:"database" default:"omnispectrum"`
			User         string        `yaml:"user" default:"default"`
			Password     string        `yaml:"password"`
			UseHTTP      bool          `yaml:"use_http"`
			DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		} `yaml:"clickhouse"`
	} `yaml:"store"`
	Inference struct {
		WorkDir    string            `yaml:"workdir" default:"backend"`
		Output     string            `yaml:"output" default:"data/omnispectrum.json" validate:"required"`
		Timeout    time.Duration     `yaml:"timeout" default:"180s" validate:"gt=0"`
		Strategies []Strategy        `yaml:"strategies" validate:"dive"`
		Env        map[string]string `yaml:"env"`
	} `yaml:"inference"`
	Refresh struct {
		Overlap         string        `yaml:"overlap" default:"coalesce" validate:"oneof=coalesce reject"`
		DistributedLock bool          `yaml:"distributed_lock"`
		Schedule        string        `yaml:"schedule"`
		RateLimit       float64       `yaml:"rate_limit" default:"0.2"`
		Burst           int           `yaml:"burst" default:"2"`
		PublishTimeout  time.Duration `yaml:"publish_timeout" default:"5s"`
	} `yaml:"refresh"`
	Serve struct {
		CacheMaxAge   time.Duration `yaml:"cache_max_age" default:"300s"`
		LocalCacheTTL time.Duration `yaml:"local_cache_ttl" default:"5s"`
	} `yaml:"serve"`
	Stream struct {
		Enabled      bool          `yaml:"enabled" default:"true"`
		PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
		WatchFile    bool          `yaml:"watch_file" default:"true"`
	} `yaml:"stream"`
	Events struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"omnispectrum.events"`
		TriggerTopic string        `yaml:"trigger_topic"`
		GroupID      string        `yaml:"group_id" default:"omnispectrum"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		RetryMax     int           `yaml:"retry_max" default:"3"`
		BackoffMin   time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax   time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic     string        `yaml:"dlq_topic"`
	} `yaml:"events"`
	Client struct {
		BaseURL         string        `yaml:"base_url" default:"http://localhost:5000"`
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"30m"`
		DedupeInterval  time.Duration `yaml:"dedupe_interval" default:"60s"`
		RequestTimeout  time.Duration `yaml:"request_timeout" default:"420s"`
	} `yaml:"client"`
}

// InferenceMargin is the slack kept above the worst-case inference run for
// response writing and client timeouts.
const InferenceMargin = 30 * time.Second

// Strategy is one way of launching the inference program.
type Strategy struct {
	Name    string   `yaml:"name" validate:"required"`
	Command string   `yaml:"command" validate:"required"`
	Args    []string `yaml:"args"`
}

// DefaultStrategies is the primary entry point followed by the module fallback.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "script", Command: "python", Args: []string{"run_inference.py"}},
		{Name: "module", Command: "python", Args: []string{"-m", "src.inference"}},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	c.Inference.Strategies = DefaultStrategies()
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Inference.Strategies) == 0 {
		c.Inference.Strategies = DefaultStrategies()
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("OMNI_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("OMNI_INFERENCE_DIR"); v != "" {
		c.Inference.WorkDir = v
	}
	if v := os.Getenv("OMNI_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("OMNI_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events.brokers cannot be empty when events are enabled")
	}
	if c.Refresh.DistributedLock && c.Store.Redis.Addr == "" {
		return fmt.Errorf("refresh.distributed_lock requires store.redis.addr")
	}
	if c.Inference.WorkDir == "" {
		return fmt.Errorf("inference.workdir is required")
	}
	if c.Store.Backend == "file" {
		same, err := samePath(c.InferenceOutputPath(), c.Store.Path)
		if err != nil {
			return fmt.Errorf("resolve paths: %w", err)
		}
		if same {
			return fmt.Errorf("inference output %s must differ from store.path", c.InferenceOutputPath())
		}
	}
	need := c.InferenceBudget() + InferenceMargin
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < need {
		return fmt.Errorf("server.write_timeout %s is below the inference budget %s", c.Server.WriteTimeout, need)
	}
	if c.Client.RequestTimeout > 0 && c.Client.RequestTimeout < need {
		return fmt.Errorf("client.request_timeout %s is below the inference budget %s", c.Client.RequestTimeout, need)
	}
	return nil
}

// InferenceBudget is the longest a refresh can spend in inference: every
// strategy may run to its timeout before the last one gives up.
func (c *Config) InferenceBudget() time.Duration {
	n := len(c.Inference.Strategies)
	if n == 0 {
		n = len(DefaultStrategies())
	}
	return time.Duration(n) * c.Inference.Timeout
}

// InferenceOutputPath is the output file the inference program writes,
// resolved against its working directory.
func (c *Config) InferenceOutputPath() string {
	if filepath.IsAbs(c.Inference.Output) {
		return c.Inference.Output
	}
	return filepath.Join(c.Inference.WorkDir, c.Inference.Output)
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
