package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "out/matriz.csv", cfg.Run.Output)
	assert.Equal(t, "sparse", cfg.Run.Encoding)
	assert.Equal(t, TransportLocal, cfg.Transport.Kind)
	assert.False(t, cfg.Kafka.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termmatrix.yaml")
	body := `
run:
  workers: 3
  encoding: dense
  output: /tmp/m.csv
transport:
  kind: tcp
  addr: coordinator:7070
  rank: 2
  size: 3
  dialTimeout: 5s
kafka:
  brokers: [broker-1:9092]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("TM_RUN_OUTPUT", "/tmp/override.csv")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Run.Workers)
	assert.Equal(t, "dense", cfg.Run.Encoding)
	assert.Equal(t, "/tmp/override.csv", cfg.Run.Output)
	assert.Equal(t, "coordinator:7070", cfg.Transport.Addr)
	assert.Equal(t, 5*time.Second, cfg.Transport.DialTimeout)
	assert.True(t, cfg.Kafka.Enabled())
	// untouched sections keep their defaults
	assert.Equal(t, "matrix.complete", cfg.Kafka.Topic)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Run.Workers = 0 }},
		{"bad encoding", func(c *Config) { c.Run.Encoding = "csr" }},
		{"empty output", func(c *Config) { c.Run.Output = "" }},
		{"bad transport", func(c *Config) { c.Transport.Kind = "mpi" }},
		{"rank out of range", func(c *Config) {
			c.Transport.Kind = TransportTCP
			c.Transport.Size = 2
			c.Transport.Rank = 2
		}},
		{"bad sink", func(c *Config) { c.Sink.Driver = "mysql" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidInput)
		})
	}
}
