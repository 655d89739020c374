package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		Database:     "pricelens",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  30 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	})
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/pricelens", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "5s", u.Query().Get("dial_timeout"))
	assert.Equal(t, "30", u.Query().Get("max_execution_time"))
	assert.Equal(t, "1", u.Query().Get("wait_for_async_insert"))

	u, err = url.Parse(buildDSN(ClientConfig{Host: "h", Port: 8123, UseHTTP: true}))
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Empty(t, u.RawQuery)
}

func TestInitSchemaAndTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	c := NewClientWithDB(db, "pricelens")
	defer c.Close()

	mock.ExpectExec("CREATE DATABASE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("denied"))
	err = c.InitSchema(context.Background(), []string{"CREATE DATABASE x", "CREATE TABLE y", "never"})
	assert.ErrorContains(t, err, "denied")

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = c.InTx(context.Background(), func(*sql.Tx) error { return errors.New("abort") })
	assert.EqualError(t, err, "abort")

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, c.InTx(context.Background(), func(*sql.Tx) error { return nil }))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "pricelens", c.Database())
}
