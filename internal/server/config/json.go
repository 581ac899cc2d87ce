package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/denauth/internal/flagx"
	"github.com/dmitrijs2005/denauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "720h" and integer nanoseconds are accepted.
//
// After unmarshalling, set fields are copied into the runtime Config; fields
// absent from the file keep their current value.
type JsonConfig struct {
	DatabaseDSN           string         `json:"database_dsn"`
	KeyringPath           string         `json:"keyring_path"`
	KeyringS3Key          string         `json:"keyring_s3_key"`
	RememberTokenValidity timex.Duration `json:"remember_token_validity"`
	RecoveryTokenValidity timex.Duration `json:"recovery_token_validity"`
	TwoFactorIssuer       string         `json:"two_factor_issuer"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	LogLevel              string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c / -config. Without
// either flag nothing is loaded. An unreadable or invalid file panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigFileFlag(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.KeyringPath, c.KeyringPath)
	setString(&config.KeyringS3Key, c.KeyringS3Key)
	if c.RememberTokenValidity.Duration > 0 {
		config.RememberTokenValidity = c.RememberTokenValidity.Duration
	}
	if c.RecoveryTokenValidity.Duration > 0 {
		config.RecoveryTokenValidity = c.RecoveryTokenValidity.Duration
	}
	setString(&config.TwoFactorIssuer, c.TwoFactorIssuer)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
