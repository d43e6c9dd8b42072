package journal

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/stake-plus/ibots/src/data"
)

// MySQLSink appends entries to the ibots_journal table.
type MySQLSink struct {
	db *gorm.DB
}

// NewMySQLSink connects to dsn and migrates the journal table.
func NewMySQLSink(dsn string) (*MySQLSink, error) {
	db, err := data.ConnectMySQL(dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: connect: %w", err)
	}
	return NewSinkFromDB(db)
}

// NewSinkFromDB migrates the journal table on an existing connection.
func NewSinkFromDB(db *gorm.DB) (*MySQLSink, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &MySQLSink{db: db}, nil
}

func (s *MySQLSink) Record(ctx context.Context, e Entry) error {
	e.ID = 0
	return s.db.WithContext(ctx).Create(&e).Error
}

// Recent returns the newest limit entries for bot, newest first.
func (s *MySQLSink) Recent(ctx context.Context, bot string, limit int) ([]Entry, error) {
	var out []Entry
	err := s.db.WithContext(ctx).
		Where("bot = ?", bot).
		Order("time DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
