package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "TELEFICATION_"

// Source yields configuration snapshots. Every call returns a fresh copy the caller
// may keep for the duration of one dispatch.
type Source interface {
	Load() (*Config, error)
}

// Parse reads a YAML or JSON config file layered over Default, then sanitises and
// validates it. The format is chosen by extension.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := ParseBytes(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseBytes decodes data as YAML when name ends in .yaml or .yml, otherwise as JSON.
// Unknown keys are rejected.
func ParseBytes(name string, data []byte) (*Config, error) {
	jb, err := coerceToJSON(name, data)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if len(bytes.TrimSpace(jb)) > 0 && !bytes.Equal(bytes.TrimSpace(jb), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(jb))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decoding config: %w", err)
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			if err == nil {
				return nil, errors.New("decoding config: trailing data")
			}
			return nil, fmt.Errorf("decoding config: %w", err)
		}
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// coerceToJSON converts YAML to JSON so both formats share the strict decoder
func coerceToJSON(name string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}

	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML makes every map key a string so the value can be marshaled to JSON
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = normalizeYAML(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

// ApplyEnv overrides options from TELEFICATION_* environment variables
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CHAT_ID":     &c.ChatID,
		"BOT_TOKEN":   &c.BotToken,
		"BOT_BYPASS":  &c.BotBypass,
		"RELAY_URL":   &c.RelayURL,
		"SITE_NAME":   &c.SiteName,
		"SITE_URL":    &c.SiteURL,
		"LISTEN_ADDR": &c.ListenAddr,
		"LOG_LEVEL":   &c.LogLevel,
		"API_KEY":     &c.APIKey,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err)
		}
		c.RateLimit = f
	}
	if v, ok := lookup(EnvPrefix + "RATE_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRATE_BURST: %w", EnvPrefix, err)
		}
		c.RateBurst = n
	}
	return nil
}

// FileSource re-reads a config file on every Load
type FileSource struct {
	Path string
}

// Load implements Source
func (f FileSource) Load() (*Config, error) {
	return Parse(f.Path)
}

// StaticSource always returns a copy of the same config
type StaticSource struct {
	Config *Config
}

// Load implements Source
func (s StaticSource) Load() (*Config, error) {
	if s.Config == nil {
		return Default(), nil
	}
	return s.Config.Clone(), nil
}

// EnvSource applies environment overrides on top of another source
type EnvSource struct {
	Source Source
}

// Load implements Source
func (e EnvSource) Load() (*Config, error) {
	cfg, err := e.Source.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
