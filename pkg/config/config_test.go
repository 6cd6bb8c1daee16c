package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	t.Parallel()

	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestNonEmpty(t *testing.T) {
	t.Parallel()

	require.NoError(t, NonEmpty("x", "X"))
	require.EqualError(t, NonEmpty("", "JWT_SECRET"), "missing required env JWT_SECRET")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ACCOUNTS_DOTENV_PROBE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ACCOUNTS_DOTENV_PROBE") })

	LoadDotEnv(filepath.Join(dir, "missing.env"), path)
	assert.Equal(t, "loaded", os.Getenv("ACCOUNTS_DOTENV_PROBE"))
}
