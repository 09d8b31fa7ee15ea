package cliutil

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupSlog(t *testing.T) {
	assert := assert.New(t)

	_, err := SetupSlog(LogOptions{LogLevel: "debug", LogFormat: "json"})
	assert.NoError(err)
	_, err = SetupSlog(LogOptions{LogLevel: "chatty"})
	assert.Error(err)
	_, err = SetupSlog(LogOptions{LogLevel: "info", LogFormat: "xml"})
	assert.Error(err)
}

func TestSetupDatabase(t *testing.T) {
	assert := assert.New(t)

	_, err := SetupDatabase("mysql://localhost/db", 1, slog.Default())
	assert.Error(err)

	db, err := SetupDatabase("sqlite://"+filepath.Join(t.TempDir(), "sub", "test.sqlite"), 1, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	sqldb, err := db.DB()
	assert.NoError(err)
	assert.NoError(sqldb.Ping())
	assert.NoError(sqldb.Close())
}
