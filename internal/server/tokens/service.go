// Package tokens implements the split selector/validator token protocol used
// for "remember me" cookies and account recovery links.
//
// A token is "selector:validator". Only the MAC of the whole string is
// stored, so a leaked table cannot be replayed. Redemption is single-use:
// the matching row is locked, compared in constant time and deleted inside
// one transaction.
package tokens

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	timecache "github.com/agilira/go-timecache"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/cryptox"
	"github.com/dmitrijs2005/denauth/internal/dbx"
	"github.com/dmitrijs2005/denauth/internal/keys"
	"github.com/dmitrijs2005/denauth/internal/logging"
	"github.com/dmitrijs2005/denauth/internal/server/models"
	"github.com/dmitrijs2005/denauth/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/denauth/internal/server/repositories/repomanager"
)

const (
	SelectorSize  = 18
	ValidatorSize = 33
	separator     = ":"
)

// Kind selects the token table.
type Kind int

const (
	KindRemember Kind = iota + 1
	KindRecovery
)

func (k Kind) String() string {
	switch k {
	case KindRemember:
		return "remember"
	case KindRecovery:
		return "recovery"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) table() (authtokens.Table, error) {
	switch k {
	case KindRemember:
		return authtokens.RememberTable, nil
	case KindRecovery:
		return authtokens.RecoveryTable, nil
	default:
		return "", fmt.Errorf("unknown token kind %d", int(k))
	}
}

// Kinds lists every token kind, in table order.
var Kinds = []Kind{KindRemember, KindRecovery}

const (
	DefaultRememberValidity = 7 * 24 * time.Hour
	DefaultRecoveryValidity = time.Hour
)

type Service struct {
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	key         *keys.SymmetricKey
	logger      logging.Logger
	now         func() time.Time
	rand        io.Reader
	validity    map[Kind]time.Duration
}

type Option func(*Service)

// WithClock replaces the cached wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand replaces crypto/rand as the selector/validator source.
func WithRand(r io.Reader) Option {
	return func(s *Service) { s.rand = r }
}

// WithValidity sets how long freshly issued tokens of kind stay redeemable.
func WithValidity(kind Kind, d time.Duration) Option {
	return func(s *Service) { s.validity[kind] = d }
}

func NewService(tx dbx.Transactor, m repomanager.RepositoryManager, key *keys.SymmetricKey, logger logging.Logger, opts ...Option) *Service {
	s := &Service{
		tx:          tx,
		repomanager: m,
		key:         key,
		logger:      logger,
		now:         timecache.CachedTime,
		rand:        rand.Reader,
		validity: map[Kind]time.Duration{
			KindRemember: DefaultRememberValidity,
			KindRecovery: DefaultRecoveryValidity,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Issue creates a token of kind for userID and returns it. The returned
// string is the only copy of the validator.
func (s *Service) Issue(ctx context.Context, kind Kind, userID int64) (string, error) {
	table, err := kind.table()
	if err != nil {
		return "", err
	}
	if userID == 0 {
		return "", common.ErrRaceCondition
	}

	selector, err := common.MakeRandBase64URLString(s.rand, SelectorSize)
	if err != nil {
		return "", fmt.Errorf("error generating selector: %w", err)
	}
	validator, err := common.MakeRandBase64URLString(s.rand, ValidatorSize)
	if err != nil {
		return "", fmt.Errorf("error generating validator: %w", err)
	}
	token := selector + separator + validator

	mac, err := cryptox.Auth([]byte(token), s.key)
	if err != nil {
		return "", err
	}

	now := s.now()
	row := &models.AuthToken{
		ID:           uuid.NewString(),
		UserID:       userID,
		Selector:     selector,
		ValidatorMAC: mac,
		ExpiresAt:    now.Add(s.validity[kind]),
	}

	if err := s.tx.WithTx(ctx, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.AuthTokens(tx, table).Create(ctx, row)
	}); err != nil {
		return "", fmt.Errorf("error storing %s token: %w", kind, err)
	}

	s.logger.Info(ctx, "token issued", "kind", kind.String(), "user_id", userID)
	return token, nil
}

// Redeem consumes token and returns the user it was issued to. Unknown,
// expired, malformed and already consumed tokens all yield
// common.ErrNoSuchToken.
func (s *Service) Redeem(ctx context.Context, kind Kind, token string) (int64, error) {
	return s.consume(ctx, kind, token, "token redeemed")
}

// consume deletes the live row matching token and logs outcome on success.
func (s *Service) consume(ctx context.Context, kind Kind, token, outcome string) (int64, error) {
	table, err := kind.table()
	if err != nil {
		return 0, err
	}

	selector, _, ok := strings.Cut(token, separator)
	if !ok {
		s.logger.Debug(ctx, "malformed token", "kind", kind.String())
		return 0, common.ErrNoSuchToken
	}

	mac, err := cryptox.Auth([]byte(token), s.key)
	if err != nil {
		return 0, err
	}

	var userID int64
	err = s.tx.WithTx(ctx, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.AuthTokens(tx, table)

		rows, err := repo.LockBySelector(ctx, selector, s.now())
		if err != nil {
			return err
		}

		for _, row := range rows {
			if !hmac.Equal([]byte(mac), []byte(row.ValidatorMAC)) {
				continue
			}
			if err := repo.Delete(ctx, row.ID); err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return common.ErrNoSuchToken
				}
				return err
			}
			userID = row.UserID
			return nil
		}
		return common.ErrNoSuchToken
	})
	if err != nil {
		if errors.Is(err, common.ErrNoSuchToken) {
			s.logger.Warn(ctx, "token rejected", "kind", kind.String())
			return 0, common.ErrNoSuchToken
		}
		return 0, fmt.Errorf("error redeeming %s token: %w", kind, err)
	}

	s.logger.Info(ctx, outcome, "kind", kind.String(), "user_id", userID)
	return userID, nil
}

// Revoke deletes token without acting on it. Revoking a token that is not
// live is common.ErrNoSuchToken.
func (s *Service) Revoke(ctx context.Context, kind Kind, token string) error {
	_, err := s.consume(ctx, kind, token, "token revoked")
	return err
}

// RevokeAll deletes every token of kind belonging to userID and reports how
// many rows were removed.
func (s *Service) RevokeAll(ctx context.Context, kind Kind, userID int64) (int64, error) {
	table, err := kind.table()
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.tx.WithTx(ctx, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = s.repomanager.AuthTokens(tx, table).DeleteByUser(ctx, userID)
		return err
	}); err != nil {
		return 0, fmt.Errorf("error revoking %s tokens: %w", kind, err)
	}

	s.logger.Info(ctx, "tokens revoked", "kind", kind.String(), "user_id", userID, "count", n)
	return n, nil
}

// Purge removes expired rows of every kind in a single transaction.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	var total int64
	now := s.now()

	if err := s.tx.WithTx(ctx, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, kind := range Kinds {
			table, _ := kind.table()
			n, err := s.repomanager.AuthTokens(tx, table).DeleteExpired(ctx, now)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	}); err != nil {
		return 0, fmt.Errorf("error purging tokens: %w", err)
	}

	s.logger.Info(ctx, "expired tokens purged", "count", total)
	return total, nil
}
