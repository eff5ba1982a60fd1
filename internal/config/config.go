// Package config loads component configuration from the environment (and
// an optional config file) the way the teacher's go-server-3 variant does:
// viper with per-component env prefixes and defaults set in code.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Broker holds the broker's runtime configuration.
type Broker struct {
	FrontAddr      string `mapstructure:"front_addr"`
	BackAddr       string `mapstructure:"back_addr"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	LogLevel       string `mapstructure:"log_level"`
}

// Proxy holds the proxy's runtime configuration.
type Proxy struct {
	XSubAddr    string `mapstructure:"xsub_addr"`
	XPubAddr    string `mapstructure:"xpub_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	LogLevel    string `mapstructure:"log_level"`
}

// Registry holds the reference/registry service's runtime configuration.
type Registry struct {
	Addr        string `mapstructure:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	DataFile    string `mapstructure:"data_file"`
	LogLevel    string `mapstructure:"log_level"`
}

// Server holds an application server's runtime configuration.
type Server struct {
	Name              string        `mapstructure:"name"`
	BrokerBackAddr    string        `mapstructure:"broker_back_addr"`
	ProxyXSubAddr     string        `mapstructure:"proxy_xsub_addr"`
	ProxyXPubAddr     string        `mapstructure:"proxy_xpub_addr"`
	RegistryAddr      string        `mapstructure:"registry_addr"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	DataDir           string        `mapstructure:"data_dir"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	SyncEvery         int           `mapstructure:"sync_every"`
	LogLevel          string        `mapstructure:"log_level"`
}

func newViper(envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetConfigName(fmt.Sprintf("%s.config", envPrefix))
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return v
}

// LoadBroker reads BROKER_* environment variables over built-in defaults.
func LoadBroker() (Broker, error) {
	v := newViper("BROKER")
	v.SetDefault("front_addr", "tcp://*:5555")
	v.SetDefault("back_addr", "tcp://*:5556")
	v.SetDefault("metrics_addr", ":9101")
	v.SetDefault("log_level", "info")

	_ = v.ReadInConfig()

	var cfg Broker
	if err := v.Unmarshal(&cfg); err != nil {
		return Broker{}, fmt.Errorf("broker config unmarshal: %w", err)
	}
	return cfg, nil
}

// LoadProxy reads PROXY_* environment variables over built-in defaults.
func LoadProxy() (Proxy, error) {
	v := newViper("PROXY")
	v.SetDefault("xsub_addr", "tcp://*:5557")
	v.SetDefault("xpub_addr", "tcp://*:5558")
	v.SetDefault("metrics_addr", ":9102")
	v.SetDefault("log_level", "info")

	_ = v.ReadInConfig()

	var cfg Proxy
	if err := v.Unmarshal(&cfg); err != nil {
		return Proxy{}, fmt.Errorf("proxy config unmarshal: %w", err)
	}
	return cfg, nil
}

// LoadRegistry reads REGISTRY_* environment variables over built-in defaults.
func LoadRegistry() (Registry, error) {
	v := newViper("REGISTRY")
	v.SetDefault("addr", "tcp://*:6000")
	v.SetDefault("metrics_addr", ":9103")
	v.SetDefault("data_file", "./data/ref_servers.json")
	v.SetDefault("log_level", "info")

	_ = v.ReadInConfig()

	var cfg Registry
	if err := v.Unmarshal(&cfg); err != nil {
		return Registry{}, fmt.Errorf("registry config unmarshal: %w", err)
	}
	return cfg, nil
}

// LoadServer reads SERVER_* environment variables over built-in defaults.
func LoadServer() (Server, error) {
	v := newViper("SERVER")
	v.SetDefault("name", "")
	v.SetDefault("broker_back_addr", "tcp://localhost:5556")
	v.SetDefault("proxy_xsub_addr", "tcp://localhost:5557")
	v.SetDefault("proxy_xpub_addr", "tcp://localhost:5558")
	v.SetDefault("registry_addr", "tcp://localhost:6000")
	v.SetDefault("metrics_addr", ":9104")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("heartbeat_interval", 5*time.Second)
	v.SetDefault("sync_every", 10)
	v.SetDefault("log_level", "info")

	_ = v.ReadInConfig()

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return Server{}, fmt.Errorf("server config unmarshal: %w", err)
	}
	if cfg.Name == "" {
		return Server{}, fmt.Errorf("SERVER_NAME is required")
	}
	if cfg.SyncEvery <= 0 {
		cfg.SyncEvery = 10
	}
	return cfg, nil
}
