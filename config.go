package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultHttpbin is the upstream used when no httpbin URI is configured.
const DefaultHttpbin = "http://httpbin.org:80"

// Config is read once at startup and never modified afterwards.
type Config struct {
	Httpbin     string          `yaml:"httpbin"`
	ListenPort  int             `yaml:"listen_port"`
	AdminPort   int             `yaml:"admin_port"`
	LogLevel    string          `yaml:"log_level"`
	Hystrix     HystrixConfig   `yaml:"hystrix"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	GeoIPDBPath string          `yaml:"geoip_db_path"`
	Redis       RedisConfig     `yaml:"redis"`
	WebhookURL  string          `yaml:"webhook_url"`
}

// HystrixConfig tunes the fallback command on the hystrix route. Zero
// values take the breaker package defaults.
type HystrixConfig struct {
	Name             string        `yaml:"name"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int64         `yaml:"failure_threshold"`
	Window           time.Duration `yaml:"window"`
	SleepWindow      time.Duration `yaml:"sleep_window"`
}

// RateLimitConfig is disabled while RPS is zero.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// RedisConfig selects shared breaker state. An empty Addr keeps it in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// LoadConfig reads path (a missing file is not an error), applies GATEWAY_*
// environment overrides and then overrides, fills defaults and validates.
func LoadConfig(path string, overrides ...func(*Config)) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if val := os.Getenv("GATEWAY_HTTPBIN"); val != "" {
		cfg.Httpbin = val
	}
	if val := os.Getenv("GATEWAY_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("GATEWAY_PORT: %w", err)
		}
		cfg.ListenPort = port
	}
	if val := os.Getenv("GATEWAY_ADMIN_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("GATEWAY_ADMIN_PORT: %w", err)
		}
		cfg.AdminPort = port
	}
	if val := os.Getenv("GATEWAY_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("GATEWAY_RATE_LIMIT_RPS"); val != "" {
		rps, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("GATEWAY_RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimit.RPS = rps
	}
	if val := os.Getenv("GATEWAY_GEOIP_DB"); val != "" {
		cfg.GeoIPDBPath = val
	}
	if val := os.Getenv("GATEWAY_REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
	}
	if val := os.Getenv("GATEWAY_REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("GATEWAY_WEBHOOK_URL"); val != "" {
		cfg.WebhookURL = val
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Httpbin == "" {
		c.Httpbin = DefaultHttpbin
	}
	if c.ListenPort == 0 {
		c.ListenPort = 8080
	}
	if c.AdminPort == 0 {
		c.AdminPort = 9090
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Hystrix.Name == "" {
		c.Hystrix.Name = "mycmd"
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS) + 1
	}
}

// Validate rejects an upstream that is not an absolute http(s) URI, ports
// outside 1-65535 or shared between listeners, and negative limits.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Httpbin)
	if err != nil {
		return fmt.Errorf("httpbin: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("httpbin: %q must be an absolute http(s) URI", c.Httpbin)
	}
	if !validPort(c.ListenPort) {
		return fmt.Errorf("listen_port: %d out of range", c.ListenPort)
	}
	if !validPort(c.AdminPort) {
		return fmt.Errorf("admin_port: %d out of range", c.AdminPort)
	}
	if c.ListenPort == c.AdminPort {
		return fmt.Errorf("listen_port and admin_port are both %d", c.ListenPort)
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps: must not be negative")
	}
	if c.Hystrix.Timeout < 0 || c.Hystrix.Window < 0 || c.Hystrix.SleepWindow < 0 {
		return fmt.Errorf("hystrix: durations must not be negative")
	}
	return nil
}

func validPort(p int) bool { return p > 0 && p < 65536 }
