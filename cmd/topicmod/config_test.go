package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/topicmod/topicmod/modconfig"

	"github.com/stretchr/testify/assert"
)

func TestConfigCommands(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.json")
	base := []string{"topicmod", "--config-url", "file://" + path}

	assert.NoError(run(append(base, "config", "init", "--admin", "7")))
	assert.NoError(run(append(base, "config", "set-group", "--", "-1001")))
	assert.NoError(run(append(base, "config", "set-mode", "test")))

	cfg, err := modconfig.NewFileStore(path).GetConfig(ctx)
	assert.NoError(err)
	assert.Equal(modconfig.ModerationConfig{AdminID: 7, ModeratorID: 7, GroupID: -1001, Mode: modconfig.ModeTest}, cfg)

	assert.NoError(run(append(base, "config", "set-moderator", "8")))
	cfg, err = modconfig.NewFileStore(path).GetConfig(ctx)
	assert.NoError(err)
	assert.Equal(int64(7), cfg.AdminID)
	assert.Equal(int64(8), cfg.ModeratorID)

	// admin can't be silently replaced
	assert.Error(run(append(base, "config", "init", "--admin", "9")))
	assert.Error(run(append(base, "config", "set-mode", "sometimes")))
	assert.Error(run(append(base, "config", "set-moderator", "bob")))
}

func TestOpenConfigStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	_, err := openConfigStore("ftp://nope", 1, slog.Default())
	assert.Error(err)

	store, err := openConfigStore("sqlite://"+filepath.Join(t.TempDir(), "config.sqlite"), 1, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	assert.NoError(store.SetConfig(ctx, modconfig.ModerationConfig{AdminID: 1, Mode: modconfig.ModeOn}))
	cfg, err := store.GetConfig(ctx)
	assert.NoError(err)
	assert.Equal(modconfig.ModeOn, cfg.Mode)
}

func TestResetCommand(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	base := []string{"topicmod", "--config-url", "file://" + filepath.Join(dir, "config.json"), "--persist-url", "file://" + filepath.Join(dir, "state")}

	assert.Error(run(append(base, "reset")))
	assert.NoError(run(append(base, "reset", "--yes")))
}
