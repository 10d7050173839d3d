// Package config loads the node API configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "MASSA_API"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	LevelDB   LevelDBConfig   `mapstructure:"leveldb"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Query     QueryConfig     `mapstructure:"query"`
	Mempool   MempoolConfig   `mapstructure:"mempool"`
	Network   NetworkConfig   `mapstructure:"network"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	AppLogFile string `mapstructure:"app_log_file"`
	Level      string `mapstructure:"level"`
}

type LevelDBConfig struct {
	Path string `mapstructure:"path"`
}

// ConsensusConfig holds the slot parameters. Times are milliseconds.
type ConsensusConfig struct {
	GenesisTimestamp uint64 `mapstructure:"genesis_timestamp"`
	SlotDuration     uint64 `mapstructure:"slot_duration"`
	ThreadCount      uint8  `mapstructure:"thread_count"`
	PeriodsPerCycle  uint64 `mapstructure:"periods_per_cycle"`
}

type QueryConfig struct {
	SnapshotStaleness time.Duration `mapstructure:"snapshot_staleness"`
	MaxCliques        int           `mapstructure:"max_cliques"`
}

type MempoolConfig struct {
	MaxOperations int `mapstructure:"max_operations"`
}

type NetworkConfig struct {
	Peers         []string      `mapstructure:"peers"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
}

type IngestConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 33035)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")

	v.SetDefault("leveldb.path", "data/leveldb")

	v.SetDefault("consensus.genesis_timestamp", 0)
	v.SetDefault("consensus.slot_duration", 500)
	v.SetDefault("consensus.thread_count", 32)
	v.SetDefault("consensus.periods_per_cycle", 128)

	v.SetDefault("query.snapshot_staleness", 250*time.Millisecond)
	v.SetDefault("query.max_cliques", 256)

	v.SetDefault("mempool.max_operations", 10000)

	v.SetDefault("network.peers", []string{})
	v.SetDefault("network.probe_interval", 10*time.Second)
	v.SetDefault("network.dial_timeout", 2*time.Second)

	v.SetDefault("ingest.enabled", false)
}

// New returns a viper instance with defaults and environment overrides set up.
// Keys map to variables such as MASSA_API_SERVER_PORT.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file, if any, into v and decodes the result
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Consensus.ThreadCount == 0 {
		errs = append(errs, errors.New("consensus.thread_count must be positive"))
	}
	if c.Consensus.SlotDuration == 0 {
		errs = append(errs, errors.New("consensus.slot_duration must be positive"))
	}
	if c.Consensus.PeriodsPerCycle == 0 {
		errs = append(errs, errors.New("consensus.periods_per_cycle must be positive"))
	}
	if c.Query.SnapshotStaleness < 0 {
		errs = append(errs, errors.New("query.snapshot_staleness must not be negative"))
	}
	if c.Query.MaxCliques < 0 || c.Mempool.MaxOperations < 0 {
		errs = append(errs, errors.New("query.max_cliques and mempool.max_operations must not be negative"))
	}
	if len(c.Network.Peers) > 0 && c.Network.ProbeInterval <= 0 {
		errs = append(errs, errors.New("network.probe_interval must be positive when peers are set"))
	}
	if c.LevelDB.Path == "" {
		errs = append(errs, errors.New("leveldb.path must be set"))
	}
	return errors.Join(errs...)
}
