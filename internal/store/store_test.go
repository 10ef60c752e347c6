package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ZanzyTHEbar/compete-docs-tracker/internal/errors"
)

// contract runs the behaviour every Store implementation must share
func contract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing document", func(t *testing.T) {
		_, err := s.Load(ctx, "historical-log")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save then load", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "comparison-data", []byte(`{"version":"1"}`)))
		data, err := s.Load(ctx, "comparison-data")
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":"1"}`, string(data))
	})

	t.Run("save replaces", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "weekly-update-log", []byte(`{"a":1}`)))
		require.NoError(t, s.Save(ctx, "weekly-update-log", []byte(`{"a":2}`)))
		data, err := s.Load(ctx, "weekly-update-log")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":2}`, string(data))
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "../etc/passwd", "a/b"} {
			assert.ErrorIs(t, s.Save(ctx, name, []byte("{}")), ErrInvalidName)
			_, err := s.Load(ctx, name)
			assert.ErrorIs(t, err, ErrInvalidName)
		}
	})
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	contract(t, m)
	assert.Equal(t, []string{"comparison-data", "weekly-update-log", "weekly-update-log"}, m.Saves())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	contract(t, s)

	data, err := os.ReadFile(filepath.Join(dir, "comparison-data.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1"}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp files must not be left behind")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	defer s.Close()

	contract(t, s)

	revs, err := s.Revisions(context.Background(), "weekly-update-log", 10)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Greater(t, revs[0].ID, revs[1].ID)
	assert.Equal(t, len(`{"a":2}`), revs[0].Size)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("COMPETE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("COMPETE_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr, Prefix: "compete-docs-test:" + t.Name() + ":"})
	require.NoError(t, err)
	defer s.Close()

	contract(t, s)
}

func TestBlobStore(t *testing.T) {
	conn := os.Getenv("COMPETE_TEST_BLOB_CONNECTION_STRING")
	if conn == "" {
		t.Skip("COMPETE_TEST_BLOB_CONNECTION_STRING not set")
	}
	s, err := NewBlobStore(context.Background(), BlobConfig{ConnectionString: conn, Container: "compete-docs-test"})
	require.NoError(t, err)

	contract(t, s)
}

func TestLoadRequired(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := LoadRequired(ctx, m, "historical-log")
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryMissingDocument))
	assert.Contains(t, err.Error(), "historical-log")

	data, err := LoadOptional(ctx, m, "weekly-update-log")
	assert.NoError(t, err)
	assert.Nil(t, data)

	_, err = LoadRequired(ctx, m, "../x")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryStorage))
}

func TestSaveAll(t *testing.T) {
	m := NewMemory()
	err := SaveAll(context.Background(), m,
		Document{Name: "historical-log", Data: []byte("{}")},
		Document{Name: "comparison-data", Data: []byte("{}")},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"historical-log", "comparison-data"}, m.Saves())
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Driver: DriverMemory}, false},
		{"file", Config{Driver: DriverFile, Dir: t.TempDir()}, false},
		{"sqlite", Config{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")}, false},
		{"unknown", Config{Driver: "ftp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(context.Background(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.Defaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DriverFile, cfg.Driver)

	assert.Error(t, (&Config{Driver: DriverRedis}).Validate())
	assert.Error(t, (&Config{Driver: DriverBlob}).Validate())
	assert.Error(t, (&Config{Driver: "ftp"}).Validate())
	assert.NoError(t, (&Config{Driver: DriverMemory}).Validate())
}
