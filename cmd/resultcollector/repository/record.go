package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JudgeRecord is the audit row of one judged submission. Redelivered results
// overwrite the row of the same submission.
type JudgeRecord struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	SubmissionID uint64 `gorm:"uniqueIndex;not null"`
	RequestID    string `gorm:"type:varchar(64)"`
	Verdict      string `gorm:"type:varchar(32);index"`
	Result       int32
	RuntimeMs    int64
	MemoryKb     int64
	PassedCount  int32
	TotalCount   int32
	Detail       string `gorm:"type:mediumtext"` // 各用例结果, JSON
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RecordRepository interface {
	Save(ctx context.Context, record *JudgeRecord) error
}

type GormRecordRepository struct {
	db *gorm.DB
}

func NewGormRecordRepository(db *gorm.DB) RecordRepository {
	return &GormRecordRepository{db: db}
}

func (r *GormRecordRepository) Save(ctx context.Context, record *JudgeRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"request_id", "verdict", "result", "runtime_ms", "memory_kb",
			"passed_count", "total_count", "detail", "updated_at",
		}),
	}).Create(record).Error
}
