package memstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/server/models"
	"github.com/dmitrijs2005/denauth/internal/server/repositories/authtokens"
)

type userRepo struct {
	s      *Store
	locked bool
}

func (r *userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	var (
		out *models.User
		err error
	)
	r.s.guard(r.locked, func() {
		for _, u := range r.s.users {
			if u.Username == user.Username {
				err = fmt.Errorf("db error: duplicate username %q", user.Username)
				return
			}
		}
		r.s.nextID++
		u := *user
		u.ID = r.s.nextID
		u.CreatedAt = time.Now().UTC()
		r.s.users[u.ID] = u
		out = &u
	})
	return out, err
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	var out *models.User
	r.s.guard(r.locked, func() {
		if u, ok := r.s.users[id]; ok {
			out = &u
		}
	})
	if out == nil {
		return nil, common.ErrorNotFound
	}
	return out, nil
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	var out *models.User
	r.s.guard(r.locked, func() {
		for _, u := range r.s.users {
			if u.Username == username {
				out = &u
				return
			}
		}
	})
	if out == nil {
		return nil, common.ErrorNotFound
	}
	return out, nil
}

func (r *userRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *userRepo) Update(_ context.Context, user *models.User) error {
	var found bool
	r.s.guard(r.locked, func() {
		cur, ok := r.s.users[user.ID]
		if !ok {
			return
		}
		found = true
		u := *user
		u.CreatedAt = cur.CreatedAt
		r.s.users[u.ID] = u
	})
	if !found {
		return common.ErrorNotFound
	}
	return nil
}

type tokenRepo struct {
	s      *Store
	table  authtokens.Table
	locked bool
}

func (r *tokenRepo) Create(_ context.Context, token *models.AuthToken) error {
	var err error
	r.s.guard(r.locked, func() {
		rows := r.s.tokens[r.table]
		for _, t := range rows {
			if t.Selector == token.Selector {
				err = errors.New("db error: duplicate selector")
				return
			}
		}
		if _, ok := r.s.users[token.UserID]; !ok {
			err = fmt.Errorf("db error: user %d does not exist", token.UserID)
			return
		}
		token.CreatedAt = time.Now().UTC()
		rows[token.ID] = *token
	})
	return err
}

func (r *tokenRepo) LockBySelector(_ context.Context, selector string, now time.Time) ([]models.AuthToken, error) {
	var out []models.AuthToken
	r.s.guard(r.locked, func() {
		for _, t := range r.s.tokens[r.table] {
			if t.Selector == selector && t.ExpiresAt.After(now) {
				out = append(out, t)
			}
		}
	})
	return out, nil
}

func (r *tokenRepo) Delete(_ context.Context, id string) error {
	var found bool
	r.s.guard(r.locked, func() {
		rows := r.s.tokens[r.table]
		if _, found = rows[id]; found {
			delete(rows, id)
		}
	})
	if !found {
		return common.ErrorNotFound
	}
	return nil
}

func (r *tokenRepo) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	return r.deleteWhere(func(t models.AuthToken) bool { return t.UserID == userID }), nil
}

func (r *tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(t models.AuthToken) bool { return !t.ExpiresAt.After(now) }), nil
}

func (r *tokenRepo) deleteWhere(pred func(models.AuthToken) bool) int64 {
	var n int64
	r.s.guard(r.locked, func() {
		rows := r.s.tokens[r.table]
		for id, t := range rows {
			if pred(t) {
				delete(rows, id)
				n++
			}
		}
	})
	return n
}
