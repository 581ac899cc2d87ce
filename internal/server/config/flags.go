package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/denauth/internal/flagx"
)

// Flags lists the short flags owned by the config layer. Subcommands must
// not reuse them.
var Flags = []string{"-d", "-k", "-K", "-t", "-r", "-i", "-u", "-p", "-b", "-g", "-e", "-l"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-k string   keyring file path
//	-K string   keyring object key in the S3 bucket
//	-t int      remember-me token validity, minutes
//	-r int      recovery token validity, minutes
//	-i string   two-factor issuer
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-l string   log level
//
// os.Args is filtered with flagx.FilterArgs first, so subcommand flags do
// not trip this flag set.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], Flags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.KeyringPath, "k", config.KeyringPath, "keyring file path")
	fs.StringVar(&config.KeyringS3Key, "K", config.KeyringS3Key, "keyring S3 object key")

	rememberTokenValidity := fs.Int("t", int(config.RememberTokenValidity.Minutes()), "remember_token_validity (in minutes)")
	recoveryTokenValidity := fs.Int("r", int(config.RecoveryTokenValidity.Minutes()), "recovery_token_validity (in minutes)")

	fs.StringVar(&config.TwoFactorIssuer, "i", config.TwoFactorIssuer, "two-factor issuer")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RememberTokenValidity = time.Duration(*rememberTokenValidity) * time.Minute
	config.RecoveryTokenValidity = time.Duration(*recoveryTokenValidity) * time.Minute
}
