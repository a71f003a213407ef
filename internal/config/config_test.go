package config

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-bridge/internal/solana"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, solana.BridgeProgramID, cfg.ProgramID())
	assert.Equal(t, 3, cfg.Relayer.MaxAttempts)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := writeFile(t, "config.yml", `
log_level: debug
solana:
  rpc_endpoint: http://rpc.example:8899
storage:
  use_memory: true
  redis_addr: localhost:6379
relayer:
  retry_delay: 2s
  max_attempts: 5
`)
	t.Setenv("BRIDGE_SOLANA_RPC_ENDPOINT", "http://env.example:8899")
	t.Setenv("BRIDGE_RELAYER_DEDUP_TTL", "1h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://env.example:8899", cfg.Solana.RPCEndpoint)
	assert.Equal(t, "ws://127.0.0.1:8900", cfg.Solana.WSEndpoint)
	assert.True(t, cfg.Storage.UseMemory)
	assert.Equal(t, "localhost:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 2*time.Second, cfg.Relayer.RetryDelay)
	assert.Equal(t, 5, cfg.Relayer.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Relayer.DedupTTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "nope: 1\n"},
		{"bad level", "log_level: loud\n"},
		{"bad program", "bridge:\n  program_id: not-base58!\n"},
		{"bad attempts", "relayer:\n  max_attempts: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "# comment\nBRIDGE_TEST_A=one\nBRIDGE_TEST_B=\"two\"\nmalformed\n")
	t.Setenv("BRIDGE_TEST_B", "kept")

	require.NoError(t, LoadEnvFile(path))
	t.Cleanup(func() { os.Unsetenv("BRIDGE_TEST_A") })

	assert.Equal(t, "one", os.Getenv("BRIDGE_TEST_A"))
	assert.Equal(t, "kept", os.Getenv("BRIDGE_TEST_B"))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing")))
}

func TestLoadKeypair(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)

	ints := make([]int, len(priv))
	for i, b := range priv {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)

	kp, err := LoadKeypair(writeFile(t, "id.json", string(data)))
	require.NoError(t, err)
	assert.Equal(t, []byte(priv.Public().(ed25519.PublicKey)), kp.PublicKey().Bytes())

	ints[40] ^= 1
	data, err = json.Marshal(ints)
	require.NoError(t, err)
	_, err = LoadKeypair(writeFile(t, "bad.json", string(data)))
	assert.Error(t, err)
}

func TestDeployment_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge-deployment.json")
	d := &Deployment{
		ProgramID: solana.BridgeProgramID,
		Bridge:    solana.PublicKey{9},
		Seed:      18446744073709551615,
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, WriteDeployment(path, d))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"seed": "18446744073709551615"`)
	assert.Contains(t, string(raw), `"programId": "`+solana.BridgeProgramID.String()+`"`)

	got, err := ReadDeployment(path)
	require.NoError(t, err)
	assert.Equal(t, d.Bridge, got.Bridge)
	assert.Equal(t, d.Seed, got.Seed)
	assert.True(t, d.Timestamp.Equal(got.Timestamp))
}
