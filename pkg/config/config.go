package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"PriceLens/internal/chart/forecast"
	"PriceLens/internal/chart/regime"
	"PriceLens/internal/chart/transform"
	"PriceLens/internal/chart/viewport"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		// CollectTopic enables error-log aggregation to Kafka when set.
		CollectTopic    string        `yaml:"collect_topic"`
		CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	} `yaml:"log"`

	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"20" validate:"gte=0"`
			Burst int     `yaml:"burst" default:"40" validate:"gte=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Backend struct {
		Type         string        `yaml:"type" default:"clickhouse" validate:"oneof=kafka clickhouse"`
		BatchSize    int           `yaml:"batch_size" default:"500" validate:"gt=0"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
	} `yaml:"backend"`

	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"pricelens.ticks"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"pricelens"`
			Workers    int           `yaml:"workers" default:"4" validate:"gt=0"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"pricelens"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		MaxOpenConns int           `yaml:"max_open_conns" default:"10"`
	} `yaml:"clickhouse"`

	Finnhub struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		RESTURL        string        `yaml:"rest_url" default:"https://finnhub.io/api/v1"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		Timeout        time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"finnhub"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"pricelens"`
	} `yaml:"redis"`

	Cache struct {
		ResponseTTL time.Duration `yaml:"response_ttl" default:"15s"`
		MemorySize  int           `yaml:"memory_size" default:"512" validate:"gt=0"`
	} `yaml:"cache"`

	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Name       string        `yaml:"name" default:"chart-warm"`
		Workers    int           `yaml:"workers" default:"2" validate:"gt=0"`
		MaxRetries int           `yaml:"max_retries" default:"3"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
		Debounce   time.Duration `yaml:"debounce" default:"5s"`
	} `yaml:"queue"`

	Breaker struct {
		MaxRequests      uint32        `yaml:"max_requests" default:"1"`
		Interval         time.Duration `yaml:"interval" default:"60s"`
		Timeout          time.Duration `yaml:"timeout" default:"30s"`
		FailureThreshold uint32        `yaml:"failure_threshold" default:"5" validate:"gt=0"`
	} `yaml:"breaker"`

	Chart ChartConfig `yaml:"chart"`
}

// ChartConfig carries the analytics tunables.
type ChartConfig struct {
	Regime    regime.Params           `yaml:"regime"`
	Forecast  forecast.Params         `yaml:"forecast"`
	Density   transform.DensityParams `yaml:"density"`
	Viewport  viewport.Config         `yaml:"viewport"`
	HitRadius float64                 `yaml:"hit_radius" default:"24" validate:"gt=0"`
	// Benchmark is the symbol overlaid on stored charts, e.g. SPY.
	Benchmark string        `yaml:"benchmark" default:"SPY"`
	MemoSize  int           `yaml:"memo_size" default:"256" validate:"gt=0"`
	MemoTTL   time.Duration `yaml:"memo_ttl" default:"10m"`
	MaxPoints int           `yaml:"max_points" default:"5000" validate:"gt=1"`
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	c.fill()
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, decodes YAML and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.fill()
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
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.Finnhub.Symbols = splitList(v)
	}
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// fill supplies defaults the struct tags cannot express.
func (c *Config) fill() {
	if len(c.Chart.Density.Curve) == 0 {
		c.Chart.Density.Curve = transform.DefaultDensity().Curve
	}
	for i, s := range c.Finnhub.Symbols {
		c.Finnhub.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}

var validate = validator.New()

// Validate runs tag validation and cross-field checks.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	var errs []error
	if c.Finnhub.Enabled {
		if c.Finnhub.APIKey == "" {
			errs = append(errs, errors.New("finnhub.api_key is required when finnhub is enabled"))
		}
		if len(c.Finnhub.Symbols) == 0 {
			errs = append(errs, errors.New("finnhub.symbols cannot be empty when finnhub is enabled"))
		}
	}
	if (c.Backend.Type == "kafka" || c.Kafka.Consumer.Enabled) && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required for the kafka backend or consumer"))
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		errs = append(errs, errors.New("queue requires redis.enabled"))
	}
	if err := validateCurve(c.Chart.Density); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateCurve(d transform.DensityParams) error {
	curve := d.Curve
	if len(curve) < 2 {
		return errors.New("chart.density.curve needs at least two knots")
	}
	for i := 1; i < len(curve); i++ {
		if curve[i].Density <= curve[i-1].Density {
			return fmt.Errorf("chart.density.curve knots must be strictly increasing at %d", i)
		}
	}
	for _, k := range curve {
		if k.Stretch <= 0 {
			return fmt.Errorf("chart.density.curve stretch must be positive, got %v", k.Stretch)
		}
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
