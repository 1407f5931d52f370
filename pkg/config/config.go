package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Holding is one portfolio position the sentinel watches.
type Holding struct {
	Code     string  `yaml:"code" validate:"required"`
	Name     string  `yaml:"name"`
	Strategy string  `yaml:"strategy" default:"trend"`
	Cost     float64 `yaml:"cost"`
	BuyDate  string  `yaml:"buy_date"` // YYYY-MM-DD, drives the T+1 lock
}

// SignalRule is one row of the declarative overlay applied after the
// tier classification. First matching rule wins.
type SignalRule struct {
	Name          string   `yaml:"name" validate:"required"`
	Triggers      []string `yaml:"triggers" validate:"required,min=1"`
	ConditionsAll []string `yaml:"conditions_all"`
	ConditionsAny []string `yaml:"conditions_any"`
	Result        string   `yaml:"result"`
	Confidence    string   `yaml:"confidence"`
}

// BiasThresholds are the MA20 deviation tiers, as fractions (-0.03 = -3%).
type BiasThresholds struct {
	Watch      float64 `yaml:"watch" default:"-0.01"`
	Warning    float64 `yaml:"warning" default:"-0.03"`
	Danger     float64 `yaml:"danger" default:"-0.05"`
	Overbought float64 `yaml:"overbought" default:"0.05"`
}

// IndicatorParams carries the tunables for the indicator library.
type IndicatorParams struct {
	MACD struct {
		FastPeriod   int `yaml:"fast_period" default:"12"`
		SlowPeriod   int `yaml:"slow_period" default:"26"`
		SignalPeriod int `yaml:"signal_period" default:"9"`
	} `yaml:"macd"`
	RSI struct {
		Period     int     `yaml:"period" default:"14"`
		Oversold   float64 `yaml:"oversold" default:"30"`
		Overbought float64 `yaml:"overbought" default:"70"`
	} `yaml:"rsi"`
	Bollinger struct {
		Window int     `yaml:"window" default:"20"`
		NumStd float64 `yaml:"num_std" default:"2"`
	} `yaml:"bollinger"`
}

// Risk groups every signal-engine tunable.
type Risk struct {
	MAWindow        int             `yaml:"ma_window" default:"20" validate:"min=2"`
	BiasThresholds  BiasThresholds  `yaml:"bias_thresholds"`
	VolumeRatioHigh float64         `yaml:"volume_ratio_high" default:"1.5"`
	Indicators      IndicatorParams `yaml:"technical_indicators"`
	SignalRules     []SignalRule    `yaml:"signal_rules" validate:"dive"`
}

// Sources configures the fallback chain and the circuit breakers that
// guard it.
type Sources struct {
	Priority       []string      `yaml:"priority" validate:"required,min=1"`
	Attempts       int           `yaml:"attempts" default:"3" validate:"min=1"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" default:"5s"`
	BackoffBase    time.Duration `yaml:"backoff_base" default:"1s"`
	BackoffCap     time.Duration `yaml:"backoff_cap" default:"10s"`
	Concurrency    int           `yaml:"concurrency" default:"16" validate:"min=1"`
	Breaker        struct {
		FailureThreshold int           `yaml:"failure_threshold" default:"3" validate:"min=1"`
		RecoveryTimeout  time.Duration `yaml:"recovery_timeout" default:"30s"`
	} `yaml:"breaker"`
	KlineCount int `yaml:"kline_count" default:"60" validate:"min=30"`
	NewsCount  int `yaml:"news_count" default:"3"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Scheduler struct {
		Enabled    bool   `yaml:"enabled" default:"true"`
		MiddayTime string `yaml:"midday_time" default:"11:35"`
		CloseTime  string `yaml:"close_time" default:"15:05"`
	} `yaml:"scheduler"`
	Storage struct {
		Backend string `yaml:"backend" default:"memory" validate:"oneof=memory clickhouse"`
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"sentinel"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		NewsTTL  time.Duration `yaml:"news_ttl" default:"10m"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic" default:"sentinel.signals"`
		Async   bool     `yaml:"async" default:"true"`
	} `yaml:"kafka"`
	Sources   Sources   `yaml:"sources"`
	Risk      Risk      `yaml:"risk_management"`
	Tracker   struct {
		RollingDays int `yaml:"rolling_days" default:"7" validate:"min=2"`
	} `yaml:"tracker"`
	Portfolio []Holding `yaml:"portfolio" validate:"required,min=1,dive"`
}

// Load reads and parses a YAML configuration file, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
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

	if v := os.Getenv("SENTINEL_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.Server.Port)
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("SOURCE_PRIORITY"); v != "" {
		c.Sources.Priority = strings.Split(v, ",")
	}

	return c, nil
}

var validate = validator.New()

// Validate checks structural constraints plus the cross-field rules the
// tag language cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, s := range c.Sources.Priority {
		switch s {
		case "eastmoney", "tencent", "sina":
		default:
			return fmt.Errorf("sources.priority: unknown source %q", s)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	bt := c.Risk.BiasThresholds
	if !(bt.Danger < bt.Warning && bt.Warning < bt.Watch && bt.Watch < 0) {
		return fmt.Errorf("bias_thresholds must satisfy danger < warning < watch < 0")
	}
	if bt.Overbought <= 0 {
		return fmt.Errorf("bias_thresholds.overbought must be positive")
	}
	for _, h := range c.Portfolio {
		if h.BuyDate != "" {
			if _, err := time.Parse("2006-01-02", h.BuyDate); err != nil {
				return fmt.Errorf("portfolio %s: bad buy_date %q", h.Code, h.BuyDate)
			}
		}
	}
	return nil
}
