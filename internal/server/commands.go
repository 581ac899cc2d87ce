package server

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/keyring"
	"github.com/dmitrijs2005/denauth/internal/server/config"
)

const usage = `usage: denauth [config flags] <command> [args]

commands:
  keygen [-o path] [-force] [-s3]   generate a keyring
  migrate                           apply database migrations
  passwd -user name                 set a user's passphrase
  recovery-token -user name         issue an account recovery token
  purge-tokens                      delete expired tokens
`

// ErrUsage is returned for a missing or unknown command or bad arguments.
var ErrUsage = errors.New("usage error")

type appCommand func(ctx context.Context, app *App, args []string, out io.Writer) error

var appCommands = map[string]appCommand{
	"migrate":        runMigrate,
	"passwd":         runPasswd,
	"recovery-token": runRecoveryToken,
	"purge-tokens":   runPurgeTokens,
}

// newAppFn is a seam for tests.
var newAppFn = NewApp

// Run executes the command named by args[0]. Config flags must already be
// stripped from args.
func Run(ctx context.Context, c *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return ErrUsage
	}

	name, rest := args[0], args[1:]
	switch name {
	case "help", "-h", "-help", "--help":
		fmt.Fprint(out, usage)
		return nil
	case "keygen":
		return runKeygen(ctx, c, rest, out)
	}

	cmd, ok := appCommands[name]
	if !ok {
		fmt.Fprintf(out, "unknown command %q\n\n%s", name, usage)
		return ErrUsage
	}

	app, err := newAppFn(ctx, c)
	if err != nil {
		return err
	}
	defer app.Close()

	return cmd(ctx, app, rest, out)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func parseArgs(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}
	return nil
}

func runKeygen(ctx context.Context, c *config.Config, args []string, out io.Writer) error {
	fs := newFlagSet("keygen", out)
	path := fs.String("o", c.KeyringPath, "output file")
	force := fs.Bool("force", false, "overwrite an existing keyring")
	toS3 := fs.Bool("s3", false, "upload to the configured S3 bucket instead of a file")
	if err := parseArgs(fs, args); err != nil {
		return err
	}

	kr, err := keyring.Generate()
	if err != nil {
		return err
	}

	if *toS3 {
		if c.KeyringS3Key == "" {
			return fmt.Errorf("%w: -s3 needs a keyring object key (-K)", ErrUsage)
		}
		if err := kr.UploadS3(ctx, S3Source(c)); err != nil {
			return err
		}
		fmt.Fprintf(out, "keyring uploaded to s3://%s/%s\n", c.S3Bucket, c.KeyringS3Key)
	} else {
		if err := kr.WriteFile(*path, *force); err != nil {
			return err
		}
		fmt.Fprintf(out, "keyring written to %s\n", *path)
	}

	fmt.Fprintf(out, "public key: %s\n", hex.EncodeToString(kr.PublicKey.RawKeyMaterial()))
	return nil
}

func runMigrate(ctx context.Context, app *App, args []string, out io.Writer) error {
	if err := parseArgs(newFlagSet("migrate", out), args); err != nil {
		return err
	}
	if err := app.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "migrations applied")
	return nil
}

func runPasswd(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("passwd", out)
	username := fs.String("user", "", "username")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("%w: -user is required", ErrUsage)
	}

	pw, err := getNewPassword(out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if _, err := app.accounts.ResetPassword(ctx, *username, string(pw)); err != nil {
		return err
	}
	fmt.Fprintf(out, "passphrase updated for %s\n", *username)
	return nil
}

func runRecoveryToken(ctx context.Context, app *App, args []string, out io.Writer) error {
	fs := newFlagSet("recovery-token", out)
	username := fs.String("user", "", "username")
	if err := parseArgs(fs, args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("%w: -user is required", ErrUsage)
	}

	_, tok, err := app.accounts.RequestRecovery(ctx, *username)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tok)
	return nil
}

func runPurgeTokens(ctx context.Context, app *App, args []string, out io.Writer) error {
	if err := parseArgs(newFlagSet("purge-tokens", out), args); err != nil {
		return err
	}
	n, err := app.tokens.Purge(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d expired tokens deleted\n", n)
	return nil
}
