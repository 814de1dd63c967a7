// Package httpconfig loads the YAML configuration for the httpcored demo
// client/server (cmd/httpcored), generalizing chproxy's config package:
// the same yaml.v2 + deepcopy + validate-after-load shape, now describing
// dispatcher limits, upstream route groups, and cache-policy knobs instead
// of ClickHouse clusters.
package httpconfig

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v2"
)

var (
	defaultMaxRequests        = 64
	defaultMaxRequestsPerHost = 5
)

// Config is the top-level document.
type Config struct {
	// Dispatcher holds the call-admission limits (spec §4.1).
	Dispatcher DispatcherConfig `yaml:"dispatcher,omitempty"`

	// Upstreams lists the named route groups a client may target.
	Upstreams []Upstream `yaml:"upstreams"`

	// Cache configures the optional persistence backend (SPEC_FULL domain
	// stack), independent of the pure cachepolicy decision function.
	Cache CacheConfig `yaml:"cache,omitempty"`

	// LogDebug toggles httplog's debug output.
	LogDebug bool `yaml:"log_debug,omitempty"`

	// XXX catches fields the schema doesn't recognize, so a typo in a
	// config file is surfaced instead of silently ignored.
	XXX map[string]interface{} `yaml:",inline"`
}

// DispatcherConfig mirrors dispatch.Dispatcher's two admission limits.
type DispatcherConfig struct {
	MaxRequests        int `yaml:"max_requests,omitempty"`
	MaxRequestsPerHost int `yaml:"max_requests_per_host,omitempty"`
}

// Upstream is a named group of hosts a route.Address may resolve against
// directly (no proxy layer configured here — route.ProxySelector is a
// runtime collaborator, not a static config list).
type Upstream struct {
	Name  string   `yaml:"name"`
	Hosts []string `yaml:"hosts"`
}

// CacheConfig configures cachestore, the optional Redis-backed persistence
// layer (SPEC_FULL domain stack) that sits behind the pure cachepolicy
// decision function.
type CacheConfig struct {
	Mode string `yaml:"mode,omitempty"` // "memory" or "redis"

	Redis RedisConfig `yaml:"redis,omitempty"`

	// MaxPayloadSize is a body-size limit, adapted from cache's
	// AsyncCache.MaxPayloadSize. It is parsed and kept here only: neither
	// cachestore nor httpclient reads it, so cached bodies are not bounded
	// by it.
	MaxPayloadSize ByteSize `yaml:"max_payload_size,omitempty"`

	// Codec selects the at-rest body compressor: "none", "gzip", or
	// "lz4" (SPEC_FULL domain stack: klauspost/compress, pierrec/lz4).
	Codec string `yaml:"codec,omitempty"`

	// MinFresh is a min-fresh duration parsed from the file. Nothing in this
	// module passes it to cachepolicy: requests are judged only by the
	// min-fresh directive they carry themselves.
	MinFresh Duration `yaml:"min_fresh,omitempty"`
}

// RedisConfig addresses a Redis deployment backing cachestore.
type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username,omitempty"`
	Password  string   `yaml:"password,omitempty"`
}

// LoadFile loads and validates configuration from a YAML file, the same
// two-step (unmarshal, then validate) chproxy's config.LoadFile performs.
func LoadFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Dispatcher: DispatcherConfig{
			MaxRequests:        defaultMaxRequests,
			MaxRequestsPerHost: defaultMaxRequestsPerHost,
		},
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("httpconfig: parsing %q: %w", filename, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("httpconfig: %q: %w", filename, err)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if len(cfg.XXX) > 0 {
		unknown := make([]string, 0, len(cfg.XXX))
		for k := range cfg.XXX {
			unknown = append(unknown, k)
		}
		sort.Strings(unknown)
		return fmt.Errorf("unknown config fields: %s", strings.Join(unknown, ", "))
	}
	if cfg.Dispatcher.MaxRequests < 1 {
		return fmt.Errorf("`dispatcher.max_requests` must be >= 1")
	}
	if cfg.Dispatcher.MaxRequestsPerHost < 1 {
		return fmt.Errorf("`dispatcher.max_requests_per_host` must be >= 1")
	}
	seen := make(map[string]struct{}, len(cfg.Upstreams))
	for _, u := range cfg.Upstreams {
		if u.Name == "" {
			return fmt.Errorf("upstream name must not be empty")
		}
		if _, ok := seen[u.Name]; ok {
			return fmt.Errorf("duplicate upstream name %q", u.Name)
		}
		seen[u.Name] = struct{}{}
		if len(u.Hosts) == 0 {
			return fmt.Errorf("upstream %q: `hosts` must not be empty", u.Name)
		}
	}
	switch cfg.Cache.Mode {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("`cache.mode` must be \"memory\" or \"redis\", got %q", cfg.Cache.Mode)
	}
	if cfg.Cache.Mode == "redis" && len(cfg.Cache.Redis.Addresses) == 0 {
		return fmt.Errorf("`cache.redis.addresses` must not be empty when `cache.mode` is \"redis\"")
	}
	switch cfg.Cache.Codec {
	case "", "none", "gzip", "lz4":
	default:
		return fmt.Errorf("`cache.codec` must be \"none\", \"gzip\", or \"lz4\", got %q", cfg.Cache.Codec)
	}
	return nil
}

// Clone returns a deep copy, the same deepcopy-based pattern chproxy's
// config.withoutSensitiveInfo uses for safe config hot-reload.
func (cfg *Config) Clone() *Config {
	// nolint: forcetypeassert // deepcopy.Copy's contract guarantees the
	// dynamic type matches the argument.
	return deepcopy.Copy(cfg).(*Config)
}
