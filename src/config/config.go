// Package config loads the server configuration: built-in defaults, then a
// TOML or JSON file, then IBOTS_ environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "IBOTS_"

// Config is the whole server configuration.
type Config struct {
	Global struct {
		Endpoint     string        `koanf:"endpoint"`
		PollInterval time.Duration `koanf:"poll_interval"`
		WaitSlice    time.Duration `koanf:"wait_slice"`
		PageSize     int           `koanf:"page_size"`
		MaxRPS       float64       `koanf:"max_rps"`
		HTTPTimeout  time.Duration `koanf:"http_timeout"`
	} `koanf:"global"`

	Control struct {
		Port         int      `koanf:"port"`
		JWTSecret    string   `koanf:"jwt_secret"`
		AllowOrigins []string `koanf:"allow_origins"`
		RateLimit    int      `koanf:"rate_limit"`
		TLSCert      string   `koanf:"tls_cert"`
		TLSKey       string   `koanf:"tls_key"`
	} `koanf:"control"`

	Storage struct {
		Directory string `koanf:"directory"`
		Backend   string `koanf:"backend"`
		RedisURL  string `koanf:"redis_url"`
	} `koanf:"storage"`

	Journal struct {
		Size     int    `koanf:"size"`
		MySQLDSN string `koanf:"mysql_dsn"`
	} `koanf:"journal"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"log"`

	Bots      map[string]Bot      `koanf:"bots"`
	Resources map[string]Resource `koanf:"resources"`
}

// Bot configures one account.
type Bot struct {
	Class     string         `koanf:"class"`
	Username  string         `koanf:"username"`
	Password  string         `koanf:"password"`
	Resources []string       `koanf:"resources"`
	Args      map[string]any `koanf:"args"`
}

// Resource configures one shared resource.
type Resource struct {
	Class string         `koanf:"class"`
	Args  map[string]any `koanf:"args"`
}

func defaults() map[string]any {
	return map[string]any{
		"global.poll_interval": "10s",
		"global.wait_slice":    "1s",
		"global.page_size":     25,
		"global.max_rps":       5.0,
		"global.http_timeout":  "30s",
		"control.port":         8000,
		"control.rate_limit":   120,
		"storage.directory":    "./ibots_store",
		"storage.backend":      "file",
		"journal.size":         10,
		"log.level":            "info",
	}
}

// Load reads path (TOML, or JSON when it ends in .json) over the defaults and
// applies environment overrides. IBOTS_CONTROL__JWT_SECRET sets
// control.jwt_secret. Secrets of the form "env:NAME" are resolved last.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path != "" {
		parser := koanf.Parser(toml.Parser())
		if strings.EqualFold(filepath.Ext(path), ".json") {
			parser = json.Parser()
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// BotNames returns configured bot names, sorted.
func (c *Config) BotNames() []string {
	out := make([]string, 0, len(c.Bots))
	for n := range c.Bots {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Select narrows the bots to names and drops resources none of them use.
// Empty names keeps everything.
func (c *Config) Select(names []string) error {
	if len(names) == 0 {
		return nil
	}
	bots := make(map[string]Bot, len(names))
	used := map[string]bool{}
	for _, n := range names {
		b, ok := c.Bots[n]
		if !ok {
			return fmt.Errorf("config: bot %q is not configured", n)
		}
		bots[n] = b
		for _, r := range b.Resources {
			used[r] = true
		}
	}
	res := make(map[string]Resource, len(used))
	for n, r := range c.Resources {
		if used[n] {
			res[n] = r
		}
	}
	c.Bots = bots
	c.Resources = res
	return nil
}

// InitConfig writes a sample configuration to path.
func InitConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists at %s", path)
	}
	return os.WriteFile(path, []byte(sample), 0o600)
}

const sample = `# ibots server configuration

[global]
endpoint = "ibis.example.org"
poll_interval = "10s"

[control]
port = 8000
# jwt_secret = "change-me"

[storage]
directory = "./ibots_store"
backend = "file"

[bots.greeter]
class = "hello"
password = "env:GREETER_PASSWORD"
resources = ["ack"]

[bots.greeter.args]
greeting = "Hi, %s"

[resources.ack]
class = "echo"
`
