package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "app_mode")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "app_mode", "game"))
	v, err := m.Get(ctx, "app_mode")
	require.NoError(t, err)
	assert.Equal(t, "game", v)
	assert.Equal(t, 1, m.Len())
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "mode.json")

	f, err := NewFile(path)
	require.NoError(t, err)

	_, err = f.Get(ctx, "app_mode")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.Set(ctx, "app_mode", "game"))
	require.NoError(t, f.Set(ctx, "other", "x"))

	reopened, err := NewFile(path)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, "app_mode")
	require.NoError(t, err)
	assert.Equal(t, "game", v)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should be renamed away")
}

func TestFile_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	f, err := NewFile(path)
	require.NoError(t, err)

	_, err = f.Get(context.Background(), "app_mode")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFile_SetReplacesCorruptDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mode.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	log := logger.NewNop()
	var buf bytes.Buffer
	log.SetOutput(&buf)

	f, err := NewFile(path, WithFileLogger(log))
	require.NoError(t, err)

	require.NoError(t, f.Set(ctx, "app_mode", "game"))
	assert.Contains(t, buf.String(), "replacing corrupt mode document")

	v, err := f.Get(ctx, "app_mode")
	require.NoError(t, err)
	assert.Equal(t, "game", v)

	reopened, err := NewFile(path)
	require.NoError(t, err)
	v, err = reopened.Get(ctx, "app_mode")
	require.NoError(t, err)
	assert.Equal(t, "game", v)
}

func TestRedis_UnreachableServerReturnsError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	r := NewRedisWithClient(client, "")
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := r.Get(ctx, "app_mode")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "mode:app_mode", r.key("app_mode"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Config{Driver: "FILE", FilePath: filepath.Join(t.TempDir(), "m.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(ctx, Config{Driver: DriverFile}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: DriverRedis}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: "etcd"}, nil)
	assert.Error(t, err)

	called := false
	openers := map[string]Opener{
		DriverPostgres: func(context.Context, Config) (Storage, error) {
			called = true
			return NewMemory(), nil
		},
	}
	_, err = Open(ctx, Config{Driver: DriverPostgres}, openers)
	require.NoError(t, err)
	assert.True(t, called)
}
