package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"database_dsn":            "postgres://db",
		"keyring_path":            "/etc/denauth/keyring.json",
		"keyring_s3_key":          "keys/keyring.json",
		"remember_token_validity": "720h",
		"recovery_token_validity": "30m",
		"two_factor_issuer":       "example.org",
		"s3_root_user":            "user",
		"s3_root_password":        "password",
		"s3_bucket":               "bucket",
		"s3_region":               "region",
		"s3_base_endpoint":        "base_endpoint",
		"log_level":               "warn",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "/etc/denauth/keyring.json", cfg.KeyringPath)
		assert.Equal(t, "keys/keyring.json", cfg.KeyringS3Key)
		assert.Equal(t, 720*time.Hour, cfg.RememberTokenValidity)
		assert.Equal(t, 30*time.Minute, cfg.RecoveryTokenValidity)
		assert.Equal(t, "example.org", cfg.TwoFactorIssuer)
		assert.Equal(t, "user", cfg.S3RootUser)
		assert.Equal(t, "password", cfg.S3RootPassword)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"database_dsn": "postgres://other",
		})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "postgres://other", cfg.DatabaseDSN)
		assert.Equal(t, "config/keyring.json", cfg.KeyringPath)
		assert.Equal(t, 7*24*time.Hour, cfg.RememberTokenValidity)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			DatabaseDSN:           "postgres://defaults",
			KeyringPath:           "keyring.json",
			RememberTokenValidity: 2 * time.Minute,
			RecoveryTokenValidity: 3 * time.Minute,
			S3Bucket:              "s3bucket",
		}
		parseJson(cfg)

		assert.Equal(t, "postgres://defaults", cfg.DatabaseDSN)
		assert.Equal(t, "keyring.json", cfg.KeyringPath)
		assert.Equal(t, 2*time.Minute, cfg.RememberTokenValidity)
		assert.Equal(t, 3*time.Minute, cfg.RecoveryTokenValidity)
		assert.Equal(t, "s3bucket", cfg.S3Bucket)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "absent.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
