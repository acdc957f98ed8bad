package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 4

func createTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	s, err := Open(Config{
		DBPath:    dbPath,
		Dimension: testDimension,
		Logger:    logger,
	})
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func vec(values ...float32) []float32 {
	return values
}

func TestOpen_InvalidConfig(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	_, err := Open(Config{Dimension: testDimension, Logger: logger})
	assert.Error(t, err)

	_, err = Open(Config{DBPath: filepath.Join(t.TempDir(), "x.db"), Logger: logger})
	assert.Error(t, err)
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	s1, err := Open(Config{DBPath: dbPath, Dimension: testDimension, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(Config{DBPath: dbPath, Dimension: testDimension, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestDimension(t *testing.T) {
	s := createTestStore(t)
	assert.Equal(t, testDimension, s.Dimension())
}
