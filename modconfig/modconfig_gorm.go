package modconfig

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// single-row table
type configRow struct {
	ID          uint `gorm:"primarykey"`
	AdminID     int64
	ModeratorID int64
	GroupID     int64
	Mode        string
}

func (configRow) TableName() string {
	return "moderation_config"
}

const configRowID = 1

type GormStore struct {
	db *gorm.DB
}

var _ Writer = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&configRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetConfig(ctx context.Context) (ModerationConfig, error) {
	var row configRow
	err := s.db.WithContext(ctx).First(&row, configRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ModerationConfig{Mode: ModeOff}, nil
	} else if err != nil {
		return ModerationConfig{}, err
	}
	m, err := ParseMode(row.Mode)
	if err != nil {
		return ModerationConfig{}, err
	}
	return ModerationConfig{
		AdminID:     row.AdminID,
		ModeratorID: row.ModeratorID,
		GroupID:     row.GroupID,
		Mode:        m,
	}, nil
}

func (s *GormStore) SetConfig(ctx context.Context, cfg ModerationConfig) error {
	row := configRow{
		ID:          configRowID,
		AdminID:     cfg.AdminID,
		ModeratorID: cfg.ModeratorID,
		GroupID:     cfg.GroupID,
		Mode:        string(cfg.Mode),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}
