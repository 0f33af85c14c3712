package ioc

import (
	"log"

	"github.com/to404hanga/online_judge_sandbox/cmd/resultcollector/repository"
	"gorm.io/gorm"
)

func InitRecordRepository(db *gorm.DB) repository.RecordRepository {
	if err := db.AutoMigrate(&repository.JudgeRecord{}); err != nil {
		log.Panicf("migrate judge record fail, err: %v", err)
	}
	return repository.NewGormRecordRepository(db)
}
