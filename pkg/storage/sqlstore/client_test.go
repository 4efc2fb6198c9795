package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenqi/lumen-core/pkg/storage"
	"github.com/lumenqi/lumen-core/pkg/storage/sqlstore"
)

func newMock(t *testing.T, dialect sqlstore.Dialect) (*sqlstore.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS lumen_documents").WillReturnResult(sqlmock.NewResult(0, 0))
	client, err := sqlstore.New(context.Background(), db, dialect, "")
	require.NoError(t, err)
	return client, mock
}

func TestClient_Postgres(t *testing.T) {
	client, mock := newMock(t, sqlstore.Postgres)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lumen_documents (name, data, updated_at) VALUES ($1, $2, $3)")).
		WithArgs("traits", []byte(`[]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, client.Save(ctx, storage.DocTraits, []byte(`[]`)))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM lumen_documents WHERE name = $1")).
		WithArgs("traits").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`[]`)))
	data, err := client.Load(ctx, storage.DocTraits)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), data)

	mock.ExpectQuery("SELECT data FROM lumen_documents").
		WithArgs("memories").
		WillReturnError(sql.ErrNoRows)
	_, err = client.Load(ctx, storage.DocMemories)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mock.ExpectClose()
	require.NoError(t, client.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_MySQL(t *testing.T) {
	client, mock := newMock(t, sqlstore.MySQL)
	ctx := context.Background()

	mock.ExpectExec("ON DUPLICATE KEY UPDATE").
		WithArgs("autonomy", []byte(`{}`), sqlmock.AnyArg()).
		WillReturnError(errors.New("connection lost"))
	err := client.Save(ctx, storage.DocAutonomy, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Save")

	assert.Equal(t, "mysql", client.Dialect().Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_Validation(t *testing.T) {
	_, err := sqlstore.New(context.Background(), nil, sqlstore.SQLite, "")
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = sqlstore.New(context.Background(), db, sqlstore.SQLite, "docs; DROP TABLE x")
	assert.Error(t, err)
}

func TestClient_UnknownDocument(t *testing.T) {
	client, mock := newMock(t, sqlstore.SQLite)
	_, err := client.Load(context.Background(), "secrets")
	assert.ErrorIs(t, err, storage.ErrUnknownDocument)
	assert.NoError(t, mock.ExpectationsWereMet())
}
