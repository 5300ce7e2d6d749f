package cli

import (
	"bytes"
	"encoding/base64"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tabula/internal/config"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		LogLevel: "error",
		Engine:   config.EngineConfig{PreviewRows: 5, MaxSteps: 10},
		Store:    config.StoreConfig{Backend: "memory"},
	}
}

func TestReplay_PrintsAnswer(t *testing.T) {
	var out bytes.Buffer
	err := Replay(context.Background(), ReplayOptions{
		Config:     testConfig(),
		ScriptPath: filepath.Join("testdata", "mean.yaml"),
		Out:        &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "The mean of a + b is 22.")
	assert.Contains(t, out.String(), "series_operation")
}

func TestReplay_GoldenTranscript(t *testing.T) {
	ctx := context.Background()
	golden := filepath.Join(t.TempDir(), "mean.golden")
	opts := ReplayOptions{
		Config:     testConfig(),
		ScriptPath: filepath.Join("testdata", "mean.yaml"),
		Expect:     golden,
		Out:        &bytes.Buffer{},
	}

	opts.Update = true
	require.NoError(t, Replay(ctx, opts))
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), "22")

	opts.Update = false
	require.NoError(t, Replay(ctx, opts))

	require.NoError(t, os.WriteFile(golden, []byte("something else\n"), 0644))
	var out bytes.Buffer
	opts.Out = &out
	err = Replay(ctx, opts)
	require.ErrorIs(t, err, ErrTranscriptMismatch)
	assert.NotEmpty(t, out.String())
}

func TestReplay_MissingSource(t *testing.T) {
	err := Replay(context.Background(), ReplayOptions{
		Config:     testConfig(),
		ScriptPath: filepath.Join("testdata", "mean.yaml"),
		Source:     filepath.Join("testdata", "nope.csv"),
		Out:        &bytes.Buffer{},
	})
	var loadErr *domain.SourceLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestNewConsultant_RequiresKey(t *testing.T) {
	_, err := NewConsultant(config.AnthropicConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewLoader_Delimiter(t *testing.T) {
	_, err := NewLoader(config.SourceConfig{Delimiter: ";"})
	assert.NoError(t, err)

	_, err = NewLoader(config.SourceConfig{Delimiter: "::"})
	assert.Error(t, err)
}

func TestNewSessions_Backends(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"memory", config.StoreConfig{Backend: "memory"}},
		{"file", config.StoreConfig{Backend: "file", Dir: t.TempDir()}},
		{"redis", config.StoreConfig{Backend: "redis", RedisAddr: mr.Addr(), RedisPrefix: "test:", LockTTLSec: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, closer, err := NewSessions(tt.cfg, NewLogger(testConfig(), false))
			require.NoError(t, err)
			defer closer.Close()

			s := domain.NewSession("s1")
			s.Request = "req"
			require.NoError(t, sessions.Save(ctx, s))
			got, err := sessions.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "req", got.Request)
		})
	}

	_, _, err := NewSessions(config.StoreConfig{Backend: "sqlite"}, nil)
	assert.Error(t, err)
}

func TestNewSessions_Encrypted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	sessions, _, err := NewSessions(config.StoreConfig{Backend: "file", Dir: dir, EncryptionKey: key}, nil)
	require.NoError(t, err)
	s := domain.NewSession("secret")
	s.Request = "total payroll by department"
	require.NoError(t, sessions.Save(ctx, s))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "payroll")

	got, err := sessions.Load(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, "total payroll by department", got.Request)

	_, _, err = NewSessions(config.StoreConfig{Backend: "memory", EncryptionKey: "not base64!"}, nil)
	assert.Error(t, err)
}
