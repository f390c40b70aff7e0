package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// QueueSettings configures one named queue, looked up by the command prefix
// (the part before ':' in a command name).
type QueueSettings struct {
	Queue       string
	Concurrency int
	Expiration  time.Duration
}

// TrackerSettings are per-tracker overrides consulted by the torrent queue.
type TrackerSettings struct {
	NoDownload bool
	SeedTime   time.Duration
}

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Download struct {
		DataDir  string
		CacheDir string
	}
	Transfer struct {
		Host               string
		Username           string
		Password           string
		DefaultSeedTime    time.Duration
		RemoveOnCompletion bool
	}
	Scheduler struct {
		PollInterval       time.Duration
		TemplatePath       string
		DefaultConcurrency int
		DefaultExpiration  time.Duration
	}
	Runtime struct {
		Workers int
	}
	Queues   map[string]QueueSettings
	Trackers map[string]TrackerSettings
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("FETCHARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8484")
	v.SetDefault("database.path", "data/fetcharr.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("download.datadir", "data/downloads")
	v.SetDefault("download.cachedir", "data/torrents")
	v.SetDefault("transfer.host", "http://127.0.0.1:8080")
	v.SetDefault("transfer.username", "admin")
	v.SetDefault("transfer.password", "")
	v.SetDefault("transfer.defaultseedtime", time.Hour)
	v.SetDefault("transfer.removeoncompletion", true)
	v.SetDefault("scheduler.pollinterval", 60*time.Second)
	v.SetDefault("scheduler.templatepath", "tasks.yaml")
	v.SetDefault("scheduler.defaultconcurrency", 1)
	v.SetDefault("scheduler.defaultexpiration", 43200*time.Second)
	v.SetDefault("runtime.workers", 4)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// QueueFor resolves the queue settings for a command prefix, falling back to
// the scheduler defaults with the prefix itself as the queue name.
func (c Config) QueueFor(prefix string) QueueSettings {
	settings := c.Queues[prefix]
	if settings.Queue == "" {
		settings.Queue = prefix
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = c.Scheduler.DefaultConcurrency
	}
	if settings.Expiration <= 0 {
		settings.Expiration = c.Scheduler.DefaultExpiration
	}
	return settings
}

// TrackerFor returns per-tracker overrides; the zero value applies when a
// tracker has none configured.
func (c Config) TrackerFor(name string) TrackerSettings {
	return c.Trackers[name]
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

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
