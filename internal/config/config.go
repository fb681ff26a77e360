package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Storage struct {
		// Driver is "sqlite" (durable, the default) or "memory".
		Driver    string
		Namespace string
	}
	Auth struct {
		Hash       string
		BcryptCost int
	}
	Runner struct {
		Timeout   time.Duration
		MaxLines  int
		RateLimit float64
		Burst     int
		Steps     uint64
	}
	Editor struct {
		Debounce time.Duration
		Autorun  bool
	}
	Catalog struct {
		SeedGlob string
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and an optional
// config file. An empty path looks for config.{yaml,json,toml} in the
// working directory.
func Load(path string) (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("HYPERLEARN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "127.0.0.1:7070")
	v.SetDefault("database.path", "data/hyperlearn.db")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.namespace", "hyperlearn_")
	v.SetDefault("auth.hash", "sha256")
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("runner.timeout", 10*time.Second)
	v.SetDefault("runner.maxlines", 1000)
	v.SetDefault("runner.ratelimit", 2.0)
	v.SetDefault("runner.burst", 4)
	v.SetDefault("runner.steps", 0)
	v.SetDefault("editor.debounce", 300*time.Millisecond)
	v.SetDefault("editor.autorun", true)
	v.SetDefault("catalog.seedglob", "")
	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		_ = v.ReadInConfig() // optional file
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("storage.driver must be sqlite or memory, got %q", c.Storage.Driver)
	}
	if c.Runner.Timeout < 0 {
		return fmt.Errorf("runner.timeout must not be negative")
	}
	if c.Runner.MaxLines < 0 {
		return fmt.Errorf("runner.maxlines must not be negative")
	}
	return nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
