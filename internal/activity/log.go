package activity

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Record is the persisted form of an Event
type Record struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	Kind      string    `json:"kind" gorm:"index;not null"`
	Email     string    `json:"email"`
	Path      string    `json:"path"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = ulid.Make().String()
	}
	return nil
}

// Log is a gorm-backed Sink writing to a local sqlite database
type Log struct {
	db     *gorm.DB
	logger zerolog.Logger
}

var _ Sink = (*Log)(nil)

// NewLog migrates the activity table and returns a database-backed sink
func NewLog(db *gorm.DB, logger zerolog.Logger) (*Log, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate activity log: %w", err)
	}
	return &Log{db: db, logger: logger}, nil
}

// Record persists an event. Failures are logged and swallowed so audit
// trouble never blocks authentication.
func (l *Log) Record(event Event) {
	rec := Record{
		Kind:   event.Kind,
		Email:  event.Email,
		Path:   event.Path,
		Detail: event.Detail,
	}

	if err := l.db.Create(&rec).Error; err != nil {
		l.logger.Warn().Err(err).Str("kind", event.Kind).Msg("Failed to record activity event")
	}
}

// Recent returns the most recent events, newest first
func (l *Log) Recent(limit int) ([]Record, error) {
	var records []Record
	if err := l.db.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}
	return records, nil
}

// Prune deletes events older than the retention window
func (l *Log) Prune(retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	res := l.db.Where("created_at < ?", cutoff).Delete(&Record{})
	if res.Error != nil {
		return fmt.Errorf("failed to prune activity log: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		l.logger.Info().Int64("deleted", res.RowsAffected).Msg("Pruned activity log")
	}
	return nil
}
