package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Username string `json:"username"`
	Threads  int    `json:"threads"`
	Nested   struct {
		Interval int `json:"interval"`
	} `json:"nested"`
}

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "ricefarm.json5")

	_, err := ReadConfig[testConfig](name)
	require.ErrorIs(t, err, os.ErrNotExist)

	writeFile(t, name, `{
		// comments are allowed
		username: "bob",
		threads: 2,
		nested: { interval: 10 },
	}`)
	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "bob", cfg.Username)
	require.Equal(t, 2, cfg.Threads)

	writeFile(t, filepath.Join(dir, "ricefarm.local.json5"), `{threads: 8}`)
	cfg, err = ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "bob", cfg.Username)
	require.Equal(t, 8, cfg.Threads)
	require.Equal(t, 10, cfg.Nested.Interval)
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "broken.json5")
	writeFile(t, name, `{username: `)

	_, err := ReadConfig[testConfig](name)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

func TestSplitExt(t *testing.T) {
	prefix, ext := splitExt("telemetry.json5")
	require.Equal(t, "telemetry", prefix)
	require.Equal(t, "json5", ext)

	prefix, ext = splitExt("noext")
	require.Equal(t, "noext", prefix)
	require.Equal(t, "", ext)
}
