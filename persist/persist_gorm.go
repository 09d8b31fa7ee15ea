package persist

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/examplestore"
)

type exampleRow struct {
	Key        string `gorm:"column:example_key;primaryKey"`
	Features   []byte
	Label      string
	MessageKey string `gorm:"index"`
	ReviewerID int64
	CreatedAt  time.Time
}

func (exampleRow) TableName() string {
	return "labeled_examples"
}

type classifierRow struct {
	ID        uint `gorm:"primarykey"`
	Data      []byte
	UpdatedAt time.Time
}

func (classifierRow) TableName() string {
	return "classifier_state"
}

const classifierRowID = 1

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&exampleRow{}, &classifierRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) LoadExamples(ctx context.Context) ([]examplestore.LabeledExample, error) {
	var rows []exampleRow
	if err := s.db.WithContext(ctx).Order("example_key").Find(&rows).Error; err != nil {
		return nil, loadErr("examples", err)
	}
	out := make([]examplestore.LabeledExample, 0, len(rows))
	for _, r := range rows {
		ex := examplestore.LabeledExample{
			Key:        r.Key,
			Label:      examplestore.Label(r.Label),
			MessageKey: r.MessageKey,
			ReviewerID: r.ReviewerID,
			CreatedAt:  r.CreatedAt,
		}
		if err := json.Unmarshal(r.Features, &ex.Features); err != nil {
			return nil, loadErr("example "+r.Key, err)
		}
		out = append(out, ex)
	}
	return out, nil
}

func (s *GormStore) SaveExamples(ctx context.Context, examples []examplestore.LabeledExample) error {
	rows := make([]exampleRow, 0, len(examples))
	for _, ex := range examples {
		fv, err := json.Marshal(ex.Features)
		if err != nil {
			return saveErr("example "+ex.Key, err)
		}
		rows = append(rows, exampleRow{
			Key:        ex.Key,
			Features:   fv,
			Label:      string(ex.Label),
			MessageKey: ex.MessageKey,
			ReviewerID: ex.ReviewerID,
			CreatedAt:  ex.CreatedAt,
		})
	}

	// replace the whole collection in one transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&exampleRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return saveErr("examples", err)
	}
	return nil
}

func (s *GormStore) LoadClassifierState(ctx context.Context) (*classifier.State, error) {
	var row classifierRow
	err := s.db.WithContext(ctx).First(&row, classifierRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, loadErr("classifier state", err)
	}
	st, err := classifier.DecodeState(row.Data)
	if err != nil {
		return nil, loadErr("classifier state", err)
	}
	return st, nil
}

func (s *GormStore) SaveClassifierState(ctx context.Context, st *classifier.State) error {
	raw, err := st.Encode()
	if err != nil {
		return saveErr("classifier state", err)
	}
	row := classifierRow{
		ID:   classifierRowID,
		Data: raw,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return saveErr("classifier state", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}
