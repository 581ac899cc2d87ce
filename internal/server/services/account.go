// Package services contains server-side business logic. This file implements
// AccountService: registration, password and two-factor management, login
// with optional "remember me", and account recovery.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	timecache "github.com/agilira/go-timecache"

	"github.com/dmitrijs2005/denauth/internal/cachekey"
	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/dbx"
	"github.com/dmitrijs2005/denauth/internal/logging"
	"github.com/dmitrijs2005/denauth/internal/password"
	"github.com/dmitrijs2005/denauth/internal/server/models"
	"github.com/dmitrijs2005/denauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/denauth/internal/server/tokens"
	"github.com/dmitrijs2005/denauth/internal/twofactor"
)

const userCacheClass = "User"

// DefaultUserCacheTTL bounds how long GetUser may serve a user without
// reading the repository.
const DefaultUserCacheTTL = time.Minute

// ErrInvalidCredentials is what Login returns for an unknown user, an
// inactive user or a wrong password alike.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid username and/or passphrase", common.ErrNoSuchUser)

// AccountDeps bundles the collaborators of AccountService.
type AccountDeps struct {
	Tokens        *tokens.Service
	Hasher        *password.Hasher
	Secrets       *twofactor.Store
	Authenticator *twofactor.Authenticator
	CacheKeys     *cachekey.Deriver
	Logger        logging.Logger

	// CacheTTL defaults to DefaultUserCacheTTL.
	CacheTTL time.Duration
	// Now defaults to the cached wall clock.
	Now func() time.Time
}

type cachedUser struct {
	user    models.User
	expires time.Time
}

type AccountService struct {
	db          dbx.DBTX
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager

	tokens  *tokens.Service
	hasher  *password.Hasher
	secrets *twofactor.Store
	auth    *twofactor.Authenticator
	keys    *cachekey.Deriver
	logger  logging.Logger
	now     func() time.Time

	// verify is the hasher's Verify; tests wrap it.
	verify func(password []byte, stored string, ctx []byte) bool
	// dummyHash is checked against on unknown usernames so that lookup
	// misses cost one Argon2 evaluation too.
	dummyHash func() (string, error)

	ttl   time.Duration
	mu    sync.RWMutex
	cache map[string]cachedUser
}

func NewAccountService(db dbx.DBTX, tx dbx.Transactor, m repomanager.RepositoryManager, d AccountDeps) *AccountService {
	s := &AccountService{
		db:          db,
		tx:          tx,
		repomanager: m,
		tokens:      d.Tokens,
		hasher:      d.Hasher,
		secrets:     d.Secrets,
		auth:        d.Authenticator,
		keys:        d.CacheKeys,
		logger:      d.Logger,
		now:         d.Now,
		verify:      d.Hasher.Verify,
		ttl:         d.CacheTTL,
		cache:       make(map[string]cachedUser),
	}
	if s.now == nil {
		s.now = timecache.CachedTime
	}
	if s.ttl == 0 {
		s.ttl = DefaultUserCacheTTL
	}
	s.dummyHash = sync.OnceValues(func() (string, error) {
		return d.Hasher.Hash([]byte("denauth-dummy-passphrase"), common.OwnerContext(0))
	})
	return s
}

// RegisterRequest carries a sign-up form. PendingTwoFactorSecret is the
// secret generated for this session by NewTwoFactorEnrollment and
// TwoFactorCode a code the user produced from it.
type RegisterRequest struct {
	Username               string
	Email                  string
	DisplayName            string
	Password               string
	PendingTwoFactorSecret string
	TwoFactorCode          string
}

// Register creates an account with a confirmed two-factor secret.
//
// The row is inserted first so the password hash and the sealed secret can
// be bound to the assigned ID, then the row is updated, all in one
// transaction.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := s.confirmPending(req.PendingTwoFactorSecret, req.TwoFactorCode); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.tx.WithTx(ctx, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		taken, err := repo.UsernameTaken(ctx, req.Username)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: user %q is already registered", common.ErrSecurity, req.Username)
		}

		user, err = repo.Create(ctx, &models.User{
			Username:    req.Username,
			Email:       req.Email,
			DisplayName: req.DisplayName,
			Active:      true,
		})
		if err != nil {
			return err
		}

		if err := s.SetPassword(user, req.Password); err != nil {
			return err
		}
		if err := s.SetTwoFactorSecret(user, req.PendingTwoFactorSecret); err != nil {
			return err
		}
		return repo.Update(ctx, user)
	})
	if err != nil {
		if errors.Is(err, common.ErrSecurity) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.remember(user)
	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// SetPassword replaces the password hash on user. It does not persist.
func (s *AccountService) SetPassword(user *models.User, pw string) error {
	if user.ID == 0 {
		return common.ErrRaceCondition
	}
	h, err := s.hasher.Hash([]byte(pw), common.OwnerContext(user.ID))
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	user.PasswordHash = h
	return nil
}

// CheckPassword reports whether pw matches the hash stored on user.
func (s *AccountService) CheckPassword(user *models.User, pw string) (bool, error) {
	if user.ID == 0 {
		return false, common.ErrRaceCondition
	}
	return s.verify([]byte(pw), user.PasswordHash, common.OwnerContext(user.ID)), nil
}

// SetTwoFactorSecret seals secret for user. It does not persist.
func (s *AccountService) SetTwoFactorSecret(user *models.User, secret string) error {
	sealed, err := s.secrets.Seal([]byte(secret), user.ID)
	if err != nil {
		return err
	}
	user.TwoFactorSecret = sealed
	return nil
}

// CheckSecondFactor verifies code against the user's TOTP secret. Users
// without a secret never pass.
func (s *AccountService) CheckSecondFactor(user *models.User, code string) (bool, error) {
	if !user.HasTwoFactor() {
		return false, nil
	}
	secret, err := s.secrets.Open(user.TwoFactorSecret, user.ID)
	if err != nil {
		return false, err
	}
	defer common.WipeByteArray(secret)
	return s.auth.Verify(string(secret), code), nil
}

// NewTwoFactorEnrollment generates a pending secret for accountName. The
// caller keeps it server-side until the user confirms it with a code.
func (s *AccountService) NewTwoFactorEnrollment(accountName string) (twofactor.Enrollment, error) {
	return s.auth.NewEnrollment(accountName)
}

// EnableTwoFactor installs pending as the user's secret once code proves the
// user holds it. It does not persist.
func (s *AccountService) EnableTwoFactor(user *models.User, pending, code string) error {
	if err := s.confirmPending(pending, code); err != nil {
		return err
	}
	return s.SetTwoFactorSecret(user, pending)
}

func (s *AccountService) confirmPending(pending, code string) error {
	if pending == "" {
		return fmt.Errorf("%w: two-factor secret not stored in session", common.ErrSecurity)
	}
	if !s.auth.Verify(pending, code) {
		return fmt.Errorf("%w: invalid two-factor authentication code", common.ErrSecurity)
	}
	return nil
}

// AccountUpdate lists the changes submitted from the account page. Nil
// fields are left alone.
type AccountUpdate struct {
	Email    *string
	Password *string

	// Both must be set for the secret to change.
	PendingTwoFactorSecret string
	TwoFactorCode          string
}

// UpdateAccount applies upd to the user and writes it back if anything
// changed.
func (s *AccountService) UpdateAccount(ctx context.Context, user *models.User, upd AccountUpdate) error {
	next := *user
	changed := false
	if upd.Email != nil {
		next.Email = *upd.Email
		changed = true
	}
	if upd.Password != nil {
		if err := s.SetPassword(&next, *upd.Password); err != nil {
			return err
		}
		changed = true
	}
	if upd.TwoFactorCode != "" {
		if err := s.EnableTwoFactor(&next, upd.PendingTwoFactorSecret, upd.TwoFactorCode); err != nil {
			return err
		}
		changed = true
	}
	if !changed {
		return nil
	}

	if err := s.repomanager.Users(s.db).Update(ctx, &next); err != nil {
		return fmt.Errorf("error updating user: %w", err)
	}
	*user = next
	s.remember(user)
	return nil
}

// LoginResult is a successful login. RememberToken is empty unless it was
// requested.
type LoginResult struct {
	User          *models.User
	RememberToken string
}

// Login checks username and password and optionally issues a remember
// token.
func (s *AccountService) Login(ctx context.Context, username, pw string, remember bool) (*LoginResult, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnDummy(pw)
			return nil, ErrInvalidCredentials
		}
		return nil, common.ErrorInternal
	}

	ok, err := s.CheckPassword(user, pw)
	if err != nil {
		return nil, err
	}
	if !ok || !user.Active {
		s.logger.Warn(ctx, "login failed", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	res := &LoginResult{User: user}
	if remember {
		if res.RememberToken, err = s.tokens.Issue(ctx, tokens.KindRemember, user.ID); err != nil {
			return nil, err
		}
	}
	s.remember(user)
	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "remember", remember)
	return res, nil
}

// AutoLogin redeems a remember token and rotates it: the old token is
// consumed and the result carries a replacement.
func (s *AccountService) AutoLogin(ctx context.Context, token string) (*LoginResult, error) {
	uid, err := s.tokens.Redeem(ctx, tokens.KindRemember, token)
	if err != nil {
		return nil, err
	}
	user, err := s.activeUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	next, err := s.tokens.Issue(ctx, tokens.KindRemember, uid)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, RememberToken: next}, nil
}

// Logout revokes the remember token, if any. A token that is already gone
// is not an error.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.tokens.Revoke(ctx, tokens.KindRemember, token)
	if err != nil && !errors.Is(err, common.ErrNoSuchToken) {
		return err
	}
	return nil
}

// RequestRecovery issues a recovery token for username. Unknown users yield
// common.ErrNoSuchUser; callers should answer with the same message either
// way.
func (s *AccountService) RequestRecovery(ctx context.Context, username string) (*models.User, string, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrNoSuchUser
		}
		return nil, "", common.ErrorInternal
	}
	tok, err := s.tokens.Issue(ctx, tokens.KindRecovery, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, tok, nil
}

// Recover redeems a recovery token and returns its user.
func (s *AccountService) Recover(ctx context.Context, token string) (*models.User, error) {
	uid, err := s.tokens.Redeem(ctx, tokens.KindRecovery, token)
	if err != nil {
		return nil, err
	}
	return s.activeUser(ctx, uid)
}

// activeUser reads uid from the repository, bypassing the cache, and refuses
// inactive accounts.
func (s *AccountService) activeUser(ctx context.Context, uid int64) (*models.User, error) {
	user, err := s.loadUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		s.Forget(uid)
		s.logger.Warn(ctx, "inactive user refused", "user_id", uid)
		return nil, ErrInvalidCredentials
	}
	s.remember(user)
	return user, nil
}

func (s *AccountService) loadUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNoSuchUser
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

func (s *AccountService) burnDummy(pw string) {
	h, err := s.dummyHash()
	if err != nil {
		return
	}
	s.verify([]byte(pw), h, common.OwnerContext(0))
}

// GetUser loads a user by ID through the in-process cache. Entries expire
// after the cache TTL; authentication paths never read from the cache.
func (s *AccountService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	key := s.keys.Derive(userCacheClass, id)

	s.mu.RLock()
	c, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Before(c.expires) {
		u := c.user
		return &u, nil
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNoSuchUser) {
			s.Forget(id)
		}
		return nil, err
	}
	s.remember(user)
	return user, nil
}

// Forget drops the cached copy of user id.
func (s *AccountService) Forget(id int64) {
	key := s.keys.Derive(userCacheClass, id)
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

func (s *AccountService) remember(user *models.User) {
	key := s.keys.Derive(userCacheClass, user.ID)
	s.mu.Lock()
	s.cache[key] = cachedUser{user: *user, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
}

// ResetPassword sets a new password for username and revokes every
// remember token of that user.
func (s *AccountService) ResetPassword(ctx context.Context, username, pw string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNoSuchUser
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if err := s.SetPassword(user, pw); err != nil {
		return nil, err
	}
	if err := repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	s.remember(user)

	if _, err := s.tokens.RevokeAll(ctx, tokens.KindRemember, user.ID); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "password reset", "user_id", user.ID)
	return user, nil
}
