package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/Dhoini/subscription-sync/internal/repository"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRepositoryFindProfileUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE email = $1")).
		WithArgs("a@x.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("u1"))

	repo := NewIdentityRepository(mock, logger.NewNop())
	userID, err := repo.FindProfileUserID(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryFindAuthUserIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM auth.users WHERE email = $1")).
		WithArgs("nobody@x.com").
		WillReturnError(pgx.ErrNoRows)

	repo := NewIdentityRepository(mock, logger.NewNop())
	_, err = repo.FindAuthUserID(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepositoryQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles")).
		WithArgs("a@x.com").
		WillReturnError(errors.New("connection reset"))

	repo := NewIdentityRepository(mock, logger.NewNop())
	_, err = repo.FindProfileUserID(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, repository.ErrNotFound))
}
