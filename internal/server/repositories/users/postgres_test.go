package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userColumns = []string{"user_id", "username", "email", "display_name", "active", "pwhash", "twofactor", "gpg_fingerprint", "created_at"}

const (
	insertQ   = `(?s)^INSERT\s+INTO\s+website_users\s*\(username,\s*email,\s*display_name,\s*active,\s*pwhash,\s*twofactor,\s*gpg_fingerprint\)\s*VALUES\s*\(\$1,.*\$7\)\s*RETURNING\s+user_id,\s*created_at\s*$`
	byIDQ     = `(?s)^SELECT\s+user_id,\s*username,.*FROM\s+website_users\s+WHERE\s+user_id\s*=\s*\$1\s*$`
	byNameQ   = `(?s)^SELECT\s+user_id,\s*username,.*FROM\s+website_users\s+WHERE\s+username\s*=\s*\$1\s*$`
	existsQ   = `(?s)^SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+website_users\s+WHERE\s+username\s*=\s*\$1\)\s*$`
	updateQ   = `(?s)^UPDATE\s+website_users\s+SET\s+email\s*=\s*\$2,.*WHERE\s+user_id\s*=\s*\$1\s*$`
	dbErrLike = `db error: .*`
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"user_id", "created_at"}).AddRow(int64(42), created)
	mock.ExpectQuery(insertQ).
		WithArgs("alice", "alice@example.org", "Alice", false, "", "", "").
		WillReturnRows(rows)

	u := &models.User{Username: "alice", Email: "alice@example.org", DisplayName: "Alice"}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 42 || got.Username != "alice" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	if err == nil || !regexp.MustCompile(dbErrLike + `db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(7), "alice", "a@x", "Alice", true, "furry100hash", "furry100seed", "ABCD", time.Now())
	mock.ExpectQuery(byIDQ).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.ID != 7 || got.Username != "alice" || !got.Active || got.PasswordHash != "furry100hash" ||
		got.TwoFactorSecret != "furry100seed" || got.GPGFingerprint != "ABCD" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByUsername_FoundAndNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userColumns).
		AddRow(int64(1), "alice", "", "", false, "", "", "", time.Now())
	mock.ExpectQuery(byNameQ).WithArgs("alice").WillReturnRows(rows)
	mock.ExpectQuery(byNameQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil || got.ID != 1 {
		t.Fatalf("GetByUsername = %+v, %v", got, err)
	}

	_, err = repo.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByUsername_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byNameQ).
		WithArgs("alice").
		WillReturnError(errors.New("db err"))

	_, err := repo.GetByUsername(context.Background(), "alice")
	if err == nil || !regexp.MustCompile(dbErrLike + `db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUsernameTaken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(existsQ).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(existsQ).WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(existsQ).WithArgs("carol").
		WillReturnError(errors.New("db err"))

	taken, err := repo.UsernameTaken(context.Background(), "alice")
	if err != nil || !taken {
		t.Fatalf("alice: taken=%v err=%v", taken, err)
	}
	taken, err = repo.UsernameTaken(context.Background(), "bob")
	if err != nil || taken {
		t.Fatalf("bob: taken=%v err=%v", taken, err)
	}
	if _, err := repo.UsernameTaken(context.Background(), "carol"); err == nil {
		t.Fatal("expected error for carol")
	}
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	u := &models.User{ID: 9, Email: "e", DisplayName: "d", Active: true, PasswordHash: "h", TwoFactorSecret: "s", GPGFingerprint: "g"}

	mock.ExpectExec(updateQ).
		WithArgs(int64(9), "e", "d", true, "h", "s", "g").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Update(context.Background(), u); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	mock.ExpectExec(updateQ).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Update(context.Background(), u); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}

	mock.ExpectExec(updateQ).
		WillReturnError(errors.New("db err"))
	if err := repo.Update(context.Background(), u); err == nil || !regexp.MustCompile(dbErrLike + `db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
