package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "afscan.yml")
	require.NoError(t, os.WriteFile(yml, []byte(
		"data_dir: /srv/afscan\n"+
			"threads: 4\n"+
			"min_identity: 80\n"+
			"aligner_args: [\"--sensitive\"]\n"+
			"log_level: debug\n"), 0o644))

	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("AFSCAN_STORE=/tmp/from-dotenv.db\n"), 0o644))

	t.Setenv("AFSCAN_THREADS", "8")
	// godotenv sets variables on the process directly.
	t.Cleanup(func() { os.Unsetenv("AFSCAN_STORE") })

	cfg, err := Load(yml, env)
	require.NoError(t, err)

	// yaml, then .env, then the process environment
	assert.Equal(t, "/srv/afscan", cfg.DataDir)
	assert.Equal(t, 8, cfg.Threads)
	assert.Equal(t, 80.0, cfg.MinIdentity)
	assert.Equal(t, []string{"--sensitive"}, cfg.AlignerArgs)
	assert.Equal(t, "/tmp/from-dotenv.db", cfg.Store)
	assert.Equal(t, "diamond", cfg.Aligner)
	assert.Equal(t, "debug", cfg.LogLevel)

	assert.Equal(t, filepath.Join("/srv/afscan", "catalog", "mutations.tsv"), cfg.CatalogPath())
	assert.Equal(t, filepath.Join("/srv/afscan", "db", "resistance_proteins.dmnd"), cfg.AlignerDBPath())
}

func TestLoadMissingYAML(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"), filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("AFSCAN_THREADS", "many")
	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "mutations.tsv")
	require.NoError(t, os.WriteFile(catalogPath, []byte("gene\n"), 0o644))

	cfg := Default()
	cfg.Catalog = catalogPath
	cfg.DataDir = dir
	assert.NoError(t, cfg.Validate(false))

	err := cfg.Validate(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aligner database")

	cfg.Threads = 0
	cfg.MinIdentity = 120
	cfg.MaxBodyBytes = 0
	err = cfg.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threads")
	assert.Contains(t, err.Error(), "min identity")
	assert.Contains(t, err.Error(), "max body bytes")

	cfg = Default()
	cfg.DataDir = dir
	assert.ErrorIs(t, cfg.Validate(false), os.ErrNotExist)
}
