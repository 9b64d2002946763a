package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	book "github.com/0x5487/panoptes"
	"github.com/0x5487/panoptes/protocol"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Service names the config file (config/panoptes.yaml) and the env prefix (PANOPTES_).
const Service = "panoptes"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Book    BookConfig    `mapstructure:"book"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Publish PublishConfig `mapstructure:"publish"`
	Replay  ReplayConfig  `mapstructure:"replay"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type BookConfig struct {
	ArenaCapacity     int32          `mapstructure:"arena_capacity"`
	MaxPriceLevels    int32          `mapstructure:"max_price_levels"`
	NormalizationBase int64          `mapstructure:"normalization_base"`
	LevelMode         book.LevelMode `mapstructure:"level_mode"`
	TrackOccupancy    bool           `mapstructure:"track_occupancy"`
	IndexHint         int            `mapstructure:"index_hint"`
}

type IngestConfig struct {
	Addr        string        `mapstructure:"addr"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"` // 0 waits for end of stream or a signal
	BufferSize  int           `mapstructure:"buffer_size"`
	MaxLatency  time.Duration `mapstructure:"max_latency"` // samples outside (0, MaxLatency) are dropped
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

type PublishConfig struct {
	RingSize  int64       `mapstructure:"ring_size"`
	Aggregate bool        `mapstructure:"aggregate"`
	Kafka     KafkaConfig `mapstructure:"kafka"`
	NATS      NATSConfig  `mapstructure:"nats"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type ReplayConfig struct {
	Target      string `mapstructure:"target"`
	Confirm     bool   `mapstructure:"confirm"`
	EndOfStream bool   `mapstructure:"end_of_stream"`
}

// Enabled reports whether any downstream publisher is configured.
func (c PublishConfig) Enabled() bool {
	return c.Aggregate || len(c.Kafka.Brokers) > 0 || c.NATS.URL != ""
}

// Options converts the book section into engine options.
func (c BookConfig) Options() book.Options {
	return book.Options{
		ArenaCapacity:     c.ArenaCapacity,
		MaxPriceLevels:    c.MaxPriceLevels,
		NormalizationBase: c.NormalizationBase,
		LevelMode:         c.LevelMode,
		TrackOccupancy:    c.TrackOccupancy,
		IndexHint:         c.IndexHint,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("book.arena_capacity", book.DefaultArenaCapacity)
	v.SetDefault("book.max_price_levels", book.DefaultMaxPriceLevels)
	v.SetDefault("book.normalization_base", book.DefaultNormalizationBase)
	v.SetDefault("book.level_mode", string(book.LevelModeDense))
	v.SetDefault("book.track_occupancy", false)
	v.SetDefault("book.index_hint", book.DefaultIndexHint)

	v.SetDefault("ingest.addr", ":12345")
	v.SetDefault("ingest.idle_timeout", 2*time.Second)
	v.SetDefault("ingest.buffer_size", 1024)
	v.SetDefault("ingest.max_latency", time.Millisecond)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("publish.ring_size", book.DefaultRingSize)
	v.SetDefault("publish.aggregate", false)
	v.SetDefault("publish.kafka.brokers", []string{})
	v.SetDefault("publish.kafka.topic", "panoptes.book")
	v.SetDefault("publish.nats.url", "")
	v.SetDefault("publish.nats.subject", "panoptes.book")

	v.SetDefault("replay.target", "127.0.0.1:12345")
	v.SetDefault("replay.confirm", false)
	v.SetDefault("replay.end_of_stream", true)
}

// Load reads file, or config/panoptes.yaml then ./panoptes.yaml when file is
// empty. A missing default file is not an error. PANOPTES_* environment
// variables override the file, e.g. PANOPTES_INGEST_ADDR for ingest.addr.
func Load(file string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(Service)
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(strings.ToUpper(Service))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the engine cannot start with.
func (c *Config) Validate() error {
	switch c.Book.LevelMode {
	case book.LevelModeDense:
		if c.Book.MaxPriceLevels <= 0 {
			return fmt.Errorf("%w: book.max_price_levels must be positive", ErrInvalidConfig)
		}
	case book.LevelModeSparse:
	default:
		return fmt.Errorf("%w: book.level_mode %q", ErrInvalidConfig, c.Book.LevelMode)
	}

	if c.Book.ArenaCapacity <= 0 {
		return fmt.Errorf("%w: book.arena_capacity must be positive", ErrInvalidConfig)
	}
	if c.Ingest.BufferSize < protocol.RecordSize {
		return fmt.Errorf("%w: ingest.buffer_size must hold a %d-byte record", ErrInvalidConfig, protocol.RecordSize)
	}
	if c.Ingest.IdleTimeout < 0 || c.Ingest.MaxLatency < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	if len(c.Publish.Kafka.Brokers) > 0 && c.Publish.Kafka.Topic == "" {
		return fmt.Errorf("%w: publish.kafka.topic is required with brokers", ErrInvalidConfig)
	}
	if c.Publish.NATS.URL != "" && c.Publish.NATS.Subject == "" {
		return fmt.Errorf("%w: publish.nats.subject is required with a url", ErrInvalidConfig)
	}
	return nil
}

// Watch reloads the config file on change and passes every valid version to
// onChange. It returns false when no file was loaded.
func Watch(v *viper.Viper, logger *slog.Logger, onChange func(*Config)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
	return true
}
