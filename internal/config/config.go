// Package config loads bridge tooling configuration from an optional YAML
// file overlaid with BRIDGE_* environment variables.
package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"solana-bridge/internal/solana"
)

// EnvPrefix prefixes every environment variable, e.g. BRIDGE_SOLANA_RPC_ENDPOINT.
const EnvPrefix = "BRIDGE"

// Config is the complete tooling configuration.
type Config struct {
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	Solana struct {
		RPCEndpoint string `yaml:"rpc_endpoint" envconfig:"RPC_ENDPOINT"`
		WSEndpoint  string `yaml:"ws_endpoint" envconfig:"WS_ENDPOINT"`
		Commitment  string `yaml:"commitment" envconfig:"COMMITMENT"`
	} `yaml:"solana" envconfig:"SOLANA"`

	Bridge struct {
		ProgramID string `yaml:"program_id" envconfig:"PROGRAM_ID"`
		Registry  string `yaml:"registry" envconfig:"REGISTRY"`
		Seed      uint64 `yaml:"seed" envconfig:"SEED"`
		// BackendKeypair is a path to a JSON keypair file (64-byte array).
		BackendKeypair string `yaml:"backend_keypair" envconfig:"BACKEND_KEYPAIR"`
		Deployment     string `yaml:"deployment" envconfig:"DEPLOYMENT"`
	} `yaml:"bridge" envconfig:"BRIDGE"`

	Storage struct {
		UseMemory     bool   `yaml:"use_memory" envconfig:"USE_MEMORY"`
		PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
		ClickhouseDSN string `yaml:"clickhouse_dsn" envconfig:"CLICKHOUSE_DSN"`
		RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
		RedisPrefix   string `yaml:"redis_prefix" envconfig:"REDIS_PREFIX"`
	} `yaml:"storage" envconfig:"STORAGE"`

	HTTP struct {
		Addr string `yaml:"addr" envconfig:"ADDR"`
	} `yaml:"http" envconfig:"HTTP"`

	Relayer struct {
		MaxAttempts int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
		RetryDelay  time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY"`
		MaxDelay    time.Duration `yaml:"max_delay" envconfig:"MAX_DELAY"`
		DedupTTL    time.Duration `yaml:"dedup_ttl" envconfig:"DEDUP_TTL"`
		Backfill    bool          `yaml:"backfill" envconfig:"BACKFILL"`
	} `yaml:"relayer" envconfig:"RELAYER"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.Solana.RPCEndpoint = "http://127.0.0.1:8899"
	cfg.Solana.WSEndpoint = "ws://127.0.0.1:8900"
	cfg.Solana.Commitment = solana.DefaultCommitment
	cfg.Bridge.ProgramID = solana.BridgeProgramID.String()
	cfg.Bridge.Deployment = "bridge-deployment.json"
	cfg.Storage.RedisPrefix = "solana-bridge"
	cfg.HTTP.Addr = ":8080"
	cfg.Relayer.MaxAttempts = 3
	cfg.Relayer.RetryDelay = 500 * time.Millisecond
	cfg.Relayer.MaxDelay = 10 * time.Second
	cfg.Relayer.DedupTTL = 24 * time.Hour
	return cfg
}

// Load reads path (skipped when empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if _, err := solana.PublicKeyFromBase58(c.Bridge.ProgramID); err != nil {
		return fmt.Errorf("bridge.program_id: %w", err)
	}
	if c.Bridge.Registry != "" {
		if _, err := solana.PublicKeyFromBase58(c.Bridge.Registry); err != nil {
			return fmt.Errorf("bridge.registry: %w", err)
		}
	}
	if c.Relayer.MaxAttempts < 1 {
		return fmt.Errorf("relayer.max_attempts must be at least 1, got %d", c.Relayer.MaxAttempts)
	}
	return nil
}

// ProgramID returns the parsed bridge program id.
func (c *Config) ProgramID() solana.PublicKey {
	return solana.MustPublicKey(c.Bridge.ProgramID)
}

// LoadEnvFile sets variables from a KEY=VALUE file without overriding the
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"`)); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

// LoadKeypair reads a keypair file holding a JSON array of 64 bytes,
// secret seed first.
func LoadKeypair(path string) (solana.Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return solana.Keypair{}, fmt.Errorf("read keypair: %w", err)
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return solana.Keypair{}, fmt.Errorf("decode keypair %s: %w", path, err)
	}
	if len(ints) != 64 {
		return solana.Keypair{}, fmt.Errorf("keypair %s: want 64 bytes, got %d", path, len(ints))
	}
	raw := make([]byte, 0, 64)
	for _, v := range ints {
		if v < 0 || v > 255 {
			return solana.Keypair{}, fmt.Errorf("keypair %s: byte out of range", path)
		}
		raw = append(raw, byte(v))
	}
	kp, err := solana.KeypairFromSeed(raw[:32])
	if err != nil {
		return solana.Keypair{}, err
	}
	if !bytes.Equal(kp.PublicKey().Bytes(), raw[32:]) {
		return solana.Keypair{}, fmt.Errorf("keypair %s: public half does not match secret", path)
	}
	return kp, nil
}
