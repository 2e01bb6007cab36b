package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "config.yaml"

type Config struct {
	Storage    Storage       `yaml:"storage"`
	Locale     string        `yaml:"locale"`
	UndoWindow time.Duration `yaml:"undo_window"`
	IdleAfter  time.Duration `yaml:"idle_after"`
	ASCII      bool          `yaml:"ascii"`
}

type Storage struct {
	Backend string `yaml:"backend"` // dir|sqlite|memory
	Key     string `yaml:"key"`
}

var Keys = []string{"storage.backend", "storage.key", "locale", "undo_window", "idle_after", "ascii"}

func Default() Config {
	c := Config{}
	c.ApplyDefaults()
	return c
}

func (s *Storage) ApplyDefaults() {
	if strings.TrimSpace(s.Backend) == "" {
		s.Backend = "dir"
	}
	if strings.TrimSpace(s.Key) == "" {
		s.Key = "5task_data"
	}
}

func (c *Config) ApplyDefaults() {
	c.Storage.ApplyDefaults()
	if strings.TrimSpace(c.Locale) == "" {
		c.Locale = "en"
	}
	if c.UndoWindow <= 0 {
		c.UndoWindow = 4 * time.Second
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = 2 * time.Minute
	}
}

func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c := Default()
			return &c, nil
		}
		return nil, err
	}
	var r Config
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.ApplyDefaults()
	return &r, nil
}

func Save(path string, c Config) error {
	c.ApplyDefaults()
	b, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Set assigns one dotted key from its string form.
func (c *Config) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	switch key {
	case "storage.backend":
		switch strings.ToLower(value) {
		case "dir", "sqlite", "memory":
			c.Storage.Backend = strings.ToLower(value)
		default:
			return invalid(key, value)
		}
	case "storage.key":
		if value == "" || strings.ContainsAny(value, `/\`) {
			return invalid(key, value)
		}
		c.Storage.Key = value
	case "locale":
		switch value {
		case "en", "pt-BR":
			c.Locale = value
		default:
			return invalid(key, value)
		}
	case "undo_window", "idle_after":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return invalid(key, value)
		}
		if key == "undo_window" {
			c.UndoWindow = d
		} else {
			c.IdleAfter = d
		}
	case "ascii":
		v, ok := parseBool(value)
		if !ok {
			return invalid(key, value)
		}
		c.ASCII = v
	default:
		return fmt.Errorf("unknown config key %q (allowed: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// Values renders every key in Keys order.
func (c Config) Values() [][2]string {
	return [][2]string{
		{"storage.backend", c.Storage.Backend},
		{"storage.key", c.Storage.Key},
		{"locale", c.Locale},
		{"undo_window", c.UndoWindow.String()},
		{"idle_after", c.IdleAfter.String()},
		{"ascii", fmt.Sprintf("%t", c.ASCII)},
	}
}

func invalid(key, value string) error {
	return fmt.Errorf("invalid value for %s: %q", key, value)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
