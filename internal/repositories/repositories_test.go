package repositories

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

var userColumns = []string{"id", "username", "password_hash", "created_at"}

func TestCreateUser(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (username, password_hash) VALUES ($1, $2)`)).
		WithArgs("alice", "hash").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(1, "alice", "hash", now))

	user, err := NewUserRepo(db).CreateUser(context.Background(), "alice", "hash")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice", user.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("alice", "hash").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := NewUserRepo(db).CreateUser(context.Background(), "alice", "hash")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestCreateUserDBError(t *testing.T) {
	db, mock := newMockDB(t)
	dbErr := errors.New("db down")

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).WillReturnError(dbErr)

	_, err := NewUserRepo(db).CreateUser(context.Background(), "alice", "hash")
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrUsernameTaken)
}

func TestGetByUsername(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, password_hash, created_at FROM users WHERE username=$1`)).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(2, "bob", "h", time.Now()))

	user, err := NewUserRepo(db).GetByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.ID)
	assert.Equal(t, "h", user.PasswordHash)
}

func TestGetByUsernameNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, password_hash, created_at FROM users`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := NewUserRepo(db).GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateMessage(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages (sender_id, recipient_id, body) VALUES ($1, $2, $3)`)).
		WithArgs(int64(1), int64(2), "hi").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "recipient_id", "body", "created_at"}).AddRow(10, 1, 2, "hi", now))

	msg, err := NewMessageRepo(db).CreateMessage(context.Background(), 1, 2, "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(10), msg.ID)
	assert.Equal(t, "hi", msg.Body)
	assert.True(t, msg.CreatedAt.Equal(now))
	require.NoError(t, mock.ExpectationsWereMet())
}
