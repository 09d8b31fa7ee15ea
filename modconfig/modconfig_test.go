package modconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestParseMode(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		in  string
		out Mode
		err bool
	}{
		{in: "on", out: ModeOn},
		{in: "ON", out: ModeOn},
		{in: "yes", out: ModeOn},
		{in: "off", out: ModeOff},
		{in: "no", out: ModeOff},
		{in: "", out: ModeOff},
		{in: " test ", out: ModeTest},
		{in: "maybe", err: true},
	}
	for _, fix := range fixtures {
		m, err := ParseMode(fix.in)
		if fix.err {
			assert.Error(err, fix.in)
			continue
		}
		assert.NoError(err, fix.in)
		assert.Equal(fix.out, m, fix.in)
	}
}

func TestIsReviewer(t *testing.T) {
	assert := assert.New(t)

	cfg := ModerationConfig{AdminID: 1, ModeratorID: 2}
	assert.True(cfg.IsReviewer(1))
	assert.True(cfg.IsReviewer(2))
	assert.False(cfg.IsReviewer(3))
	assert.False(cfg.IsReviewer(0))
	assert.False((&ModerationConfig{}).IsReviewer(0))
}

func testWriterBasics(t *testing.T, s Writer) {
	assert := assert.New(t)
	ctx := context.Background()

	cfg, err := s.GetConfig(ctx)
	assert.NoError(err)
	assert.Equal(ModeOff, cfg.Mode)
	assert.Equal(int64(0), cfg.GroupID)

	want := ModerationConfig{AdminID: 10, ModeratorID: 11, GroupID: -100123, Mode: ModeTest}
	assert.NoError(s.SetConfig(ctx, want))
	cfg, err = s.GetConfig(ctx)
	assert.NoError(err)
	assert.Equal(want, cfg)

	want.Mode = ModeOn
	want.ModeratorID = 12
	assert.NoError(s.SetConfig(ctx, want))
	cfg, err = s.GetConfig(ctx)
	assert.NoError(err)
	assert.Equal(want, cfg)
}

func TestMemStore(t *testing.T) {
	testWriterBasics(t, NewMemStore(ModerationConfig{}))

	s := NewMemStore(ModerationConfig{GroupID: 5})
	s.SetMode(ModeOn)
	cfg, err := s.GetConfig(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, ModeOn, cfg.Mode)
	assert.Equal(t, int64(5), cfg.GroupID)
}

func TestFileStore(t *testing.T) {
	assert := assert.New(t)

	p := filepath.Join(t.TempDir(), "sub", "config.json")
	testWriterBasics(t, NewFileStore(p))

	// legacy yes/no mode values
	assert.NoError(os.WriteFile(p, []byte(`{"admin": 1, "moderator": 1, "group": -5, "mode": "yes"}`), 0644))
	cfg, err := NewFileStore(p).GetConfig(context.Background())
	assert.NoError(err)
	assert.Equal(ModeOn, cfg.Mode)
	assert.Equal(int64(-5), cfg.GroupID)

	assert.NoError(os.WriteFile(p, []byte(`{`), 0644))
	_, err = NewFileStore(p).GetConfig(context.Background())
	assert.Error(err)
}

func TestGormStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "config.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewGormStore(db)
	if err != nil {
		t.Fatal(err)
	}
	testWriterBasics(t, s)
}
