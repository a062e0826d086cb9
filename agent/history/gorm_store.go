package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// entryRow is the relational shape of an Entry. Seq preserves append order.
type entryRow struct {
	Seq            uint      `gorm:"primaryKey;autoIncrement"`
	EntryID        string    `gorm:"column:entry_id;size:64;uniqueIndex;not null"`
	AskBy          string    `gorm:"column:ask_by;size:255"`
	ResponseBy     string    `gorm:"column:response_by;size:255"`
	Timestamp      time.Time `gorm:"column:timestamp;index"`
	Model          string    `gorm:"column:model;size:255"`
	Ask            string    `gorm:"column:ask;type:text"`
	Answer         string    `gorm:"column:answer;type:text"`
	Markdown       bool      `gorm:"column:markdown"`
	LookupTag      string    `gorm:"column:lookup_tag;size:32"`
	ConversationID string    `gorm:"column:conversation_id;size:64;index"`
	ParentID       string    `gorm:"column:parent_id;size:64;index"`
	ProjectName    string    `gorm:"column:project_name;size:255"`
}

// TableName 指定表名
func (entryRow) TableName() string { return "history_entries" }

func toRow(e Entry) entryRow {
	return entryRow{
		EntryID:        e.ID,
		AskBy:          e.AskBy,
		ResponseBy:     e.ResponseBy,
		Timestamp:      e.Timestamp,
		Model:          e.Model,
		Ask:            e.Ask,
		Answer:         e.Answer,
		Markdown:       e.Markdown,
		LookupTag:      string(e.LookupTag),
		ConversationID: e.ConversationID,
		ParentID:       e.ParentID,
		ProjectName:    e.ProjectName,
	}
}

func (r entryRow) toEntry() Entry {
	return Entry{
		ID:             r.EntryID,
		AskBy:          r.AskBy,
		ResponseBy:     r.ResponseBy,
		Timestamp:      r.Timestamp.UTC(),
		Model:          r.Model,
		Ask:            r.Ask,
		Answer:         r.Answer,
		Markdown:       r.Markdown,
		LookupTag:      LookupTag(r.LookupTag),
		ConversationID: r.ConversationID,
		ParentID:       r.ParentID,
		ProjectName:    r.ProjectName,
	}
}

// GormStore keeps the log in a SQL table (sqlite, postgres or mysql).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db. When autoMigrate is set the table is created with
// gorm's AutoMigrate instead of the versioned migrations.
func NewGormStore(db *gorm.DB, autoMigrate bool) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: db cannot be nil", ErrInvalidInput)
	}
	if autoMigrate {
		if err := db.AutoMigrate(&entryRow{}); err != nil {
			return nil, fmt.Errorf("migrate history_entries: %w", err)
		}
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Load(ctx context.Context) ([]Entry, error) {
	var rows []entryRow
	if err := s.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntry())
	}
	return out, nil
}

// Append inserts a single row.
func (s *GormStore) Append(ctx context.Context, e Entry) error {
	row := toRow(e)
	return s.db.WithContext(ctx).Create(&row).Error
}

// Save replaces the table contents inside one transaction.
func (s *GormStore) Save(ctx context.Context, entries []Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&entryRow{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		rows := make([]entryRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, toRow(e))
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

// Close is a no-op: the connection is owned by the caller.
func (s *GormStore) Close() error { return nil }
