package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrInvalid = errors.New("config: invalid")

// Validate checks what the server needs before it can start any bot.
func Validate(cfg *Config) error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if strings.TrimSpace(cfg.Global.Endpoint) == "" {
		add("global.endpoint is required")
	}
	if cfg.Global.PollInterval <= 0 {
		add("global.poll_interval must be positive")
	}
	if cfg.Global.PageSize <= 0 {
		add("global.page_size must be positive")
	}
	if cfg.Control.Port <= 0 || cfg.Control.Port > 65535 {
		add("control.port %d out of range", cfg.Control.Port)
	}
	if (cfg.Control.TLSCert == "") != (cfg.Control.TLSKey == "") {
		add("control.tls_cert and control.tls_key go together")
	}
	switch cfg.Storage.Backend {
	case "file":
	case "redis":
		if cfg.Storage.RedisURL == "" {
			add("storage.redis_url is required for the redis backend")
		}
	default:
		add("storage.backend %q is not one of file, redis", cfg.Storage.Backend)
	}
	if len(cfg.Bots) == 0 {
		add("no bots configured")
	}
	for _, name := range cfg.BotNames() {
		b := cfg.Bots[name]
		if strings.TrimSpace(b.Class) == "" {
			add("bots.%s.class is required", name)
		}
		if b.Password == "" {
			add("bots.%s.password is required", name)
		}
		for _, r := range b.Resources {
			if _, ok := cfg.Resources[r]; !ok {
				add("bots.%s uses resource %q which is not configured", name, r)
			}
		}
	}
	for name, r := range cfg.Resources {
		if strings.TrimSpace(r.Class) == "" {
			add("resources.%s.class is required", name)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// resolveSecrets replaces "env:NAME" values of passwords, resource string
// args and the JWT secret with the named environment variable.
func (c *Config) resolveSecrets() error {
	var err error
	if c.Control.JWTSecret, err = secret(c.Control.JWTSecret); err != nil {
		return err
	}
	for name, b := range c.Bots {
		if b.Password, err = secret(b.Password); err != nil {
			return fmt.Errorf("bots.%s.password: %w", name, err)
		}
		c.Bots[name] = b
	}
	for name, r := range c.Resources {
		for k, v := range r.Args {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if r.Args[k], err = secret(s); err != nil {
				return fmt.Errorf("resources.%s.args.%s: %w", name, k, err)
			}
		}
	}
	return nil
}

func secret(v string) (string, error) {
	name, ok := strings.CutPrefix(v, "env:")
	if !ok {
		return v, nil
	}
	val, found := os.LookupEnv(name)
	if !found {
		return "", fmt.Errorf("config: environment variable %s is not set", name)
	}
	return val, nil
}
