package twofactor

import (
	"time"

	"github.com/agilira/go-timecache"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const DefaultIssuer = "soatok.com"

// Enrollment is a freshly generated secret awaiting confirmation. URI is the
// otpauth:// link rendered as a QR code.
type Enrollment struct {
	Secret string
	URI    string
}

// Authenticator issues and checks RFC 6238 codes: 30 second period, six
// digits, SHA-1, one step of clock skew either way.
type Authenticator struct {
	issuer string
	now    func() time.Time
	opts   totp.ValidateOpts
}

type AuthenticatorOption func(*Authenticator)

// WithClock replaces the time source. Tests use it to pin the current step.
func WithClock(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) { a.now = now }
}

func NewAuthenticator(issuer string, opts ...AuthenticatorOption) *Authenticator {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	a := &Authenticator{
		issuer: issuer,
		now:    timecache.CachedTime,
		opts: totp.ValidateOpts{
			Period:    30,
			Skew:      1,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// NewEnrollment generates a secret for accountName.
func (a *Authenticator) NewEnrollment(accountName string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      a.issuer,
		AccountName: accountName,
		Period:      a.opts.Period,
		Digits:      a.opts.Digits,
		Algorithm:   a.opts.Algorithm,
	})
	if err != nil {
		return Enrollment{}, err
	}
	return Enrollment{Secret: key.Secret(), URI: key.URL()}, nil
}

// Verify reports whether code is valid for secret at the current time.
func (a *Authenticator) Verify(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, a.now(), a.opts)
	return err == nil && ok
}

// Code returns the current code for secret.
func (a *Authenticator) Code(secret string) (string, error) {
	return totp.GenerateCodeCustom(secret, a.now(), a.opts)
}
