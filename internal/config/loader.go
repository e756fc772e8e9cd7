package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REBALANCE_"

// envOverrides lists the settings that may be overridden from the
// environment, e.g. REBALANCE_RELEASE=v1_17_R1.
type envOverrides struct {
	ListenAddr   string        `env:"LISTEN_ADDR"`
	LogLevel     string        `env:"LOG_LEVEL"`
	Release      string        `env:"RELEASE"`
	Catalog      string        `env:"CATALOG"`
	ApplyOnStart bool          `env:"APPLY_ON_START"`
	PostgresDSN  string        `env:"POSTGRES_DSN"`
	SQLitePath   string        `env:"SQLITE_PATH"`
	PatchDir     string        `env:"PATCH_DIR"`
	S3Bucket     string        `env:"S3_BUCKET"`
	S3Prefix     string        `env:"S3_PREFIX"`
	S3Endpoint   string        `env:"S3_ENDPOINT"`
	RestoreTries int           `env:"RESTORE_MAX_ATTEMPTS"`
	WatchEvery   time.Duration `env:"WATCH_INTERVAL"`
}

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and returns the validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadWithEnv(f, env.ToMap(os.Environ()))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. The process environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	return LoadWithEnv(r, nil)
}

// LoadWithEnv is like [LoadFromReader] but applies overrides from environ,
// a map of environment variable names to values.
func LoadWithEnv(r io.Reader, environ map[string]string) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := applyEnv(cfg, environ); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseBytes is [LoadWithEnv] over an in-memory file.
func parseBytes(data []byte, environ map[string]string) (*Config, error) {
	return LoadWithEnv(bytes.NewReader(data), environ)
}

func applyEnv(cfg *Config, environ map[string]string) error {
	if len(environ) == 0 {
		return nil
	}
	var ov envOverrides
	if err := env.ParseWithOptions(&ov, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}

	setString(&cfg.Server.ListenAddr, ov.ListenAddr)
	setString((*string)(&cfg.Server.LogLevel), ov.LogLevel)
	setString(&cfg.Runtime.Release, ov.Release)
	setString(&cfg.Runtime.Catalog, ov.Catalog)
	if _, ok := environ[EnvPrefix+"APPLY_ON_START"]; ok {
		cfg.Runtime.ApplyOnStart = ov.ApplyOnStart
	}
	if ov.RestoreTries != 0 {
		cfg.Restore.MaxAttempts = ov.RestoreTries
	}
	if ov.WatchEvery != 0 {
		cfg.Observability.WatchInterval = ov.WatchEvery
	}

	// Source overrides fill the matching configured source, or prepend a new
	// one so that it is tried first.
	if ov.PostgresDSN != "" {
		sourceOf(cfg, SourcePostgres).DSN = ov.PostgresDSN
	}
	if ov.SQLitePath != "" {
		sourceOf(cfg, SourceSQLite).Path = ov.SQLitePath
	}
	if ov.PatchDir != "" {
		sourceOf(cfg, SourceFile).Dir = ov.PatchDir
	}
	if ov.S3Bucket != "" {
		s := sourceOf(cfg, SourceS3)
		s.S3.Bucket = ov.S3Bucket
		setString(&s.S3.Prefix, ov.S3Prefix)
		setString(&s.S3.Endpoint, ov.S3Endpoint)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func sourceOf(cfg *Config, kind SourceKind) *SourceEntry {
	for i := range cfg.Patches.Sources {
		if cfg.Patches.Sources[i].Kind == kind {
			return &cfg.Patches.Sources[i]
		}
	}
	if len(cfg.Patches.Sources) == 0 {
		// Keep the embedded documents as the last resort.
		cfg.Patches.Sources = []SourceEntry{{Kind: SourceEmbedded}}
	}
	cfg.Patches.Sources = append([]SourceEntry{{Kind: kind}}, cfg.Patches.Sources...)
	return &cfg.Patches.Sources[0]
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if strings.ContainsAny(cfg.Runtime.Release, `/\. `) {
		errs = append(errs, fmt.Errorf("runtime.release %q is not a version tag", cfg.Runtime.Release))
	}

	seen := make(map[SourceKind]int, len(cfg.Patches.Sources))
	for i, src := range cfg.Patches.Sources {
		prefix := fmt.Sprintf("patches.sources[%d]", i)
		if prev, ok := seen[src.Kind]; ok && src.Kind != SourceFile {
			errs = append(errs, fmt.Errorf("%s: kind %q duplicates patches.sources[%d]", prefix, src.Kind, prev))
		}
		seen[src.Kind] = i

		switch src.Kind {
		case SourceEmbedded:
		case SourceFile:
			if src.Dir == "" {
				errs = append(errs, fmt.Errorf("%s.dir is required for kind file", prefix))
			}
		case SourcePostgres:
			if src.DSN == "" {
				errs = append(errs, fmt.Errorf("%s.dsn is required for kind postgres", prefix))
			}
		case SourceSQLite:
			if src.Path == "" {
				errs = append(errs, fmt.Errorf("%s.path is required for kind sqlite", prefix))
			}
		case SourceS3:
			if src.S3.Bucket == "" {
				errs = append(errs, fmt.Errorf("%s.s3.bucket is required for kind s3", prefix))
			}
			if (src.S3.AccessKeyID == "") != (src.S3.SecretAccessKey == "") {
				errs = append(errs, fmt.Errorf("%s.s3: access_key_id and secret_access_key must be set together", prefix))
			}
		case "":
			errs = append(errs, fmt.Errorf("%s.kind is required", prefix))
		default:
			// Custom kinds may be registered at runtime; unknown ones fail
			// when the source is created.
			slog.Warn("unknown patch source kind, may be a typo or a custom source",
				"index", i,
				"kind", src.Kind,
			)
		}
	}

	if t := cfg.Patches.SuggestThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("patches.suggest_threshold %.2f is out of range [0, 1]", t))
	}
	if r := cfg.Observability.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.trace_sample_ratio %.2f is out of range [0, 1]", r))
	}
	if cfg.Patches.CircuitBreaker.MaxFailures < 0 {
		errs = append(errs, errors.New("patches.circuit_breaker.max_failures must not be negative"))
	}
	if cfg.Restore.MaxAttempts < 0 {
		errs = append(errs, errors.New("restore.max_attempts must not be negative"))
	}
	if cfg.Restore.Backoff < 0 || cfg.Restore.MaxBackoff < 0 {
		errs = append(errs, errors.New("restore backoff durations must not be negative"))
	}
	if cfg.Restore.MaxBackoff > 0 && cfg.Restore.Backoff > cfg.Restore.MaxBackoff {
		errs = append(errs, fmt.Errorf("restore.backoff %s exceeds restore.max_backoff %s", cfg.Restore.Backoff, cfg.Restore.MaxBackoff))
	}
	return errors.Join(errs...)
}
