package ioc

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
	"github.com/to404hanga/online_judge_sandbox/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func InitDB() *gorm.DB {
	var cfg config.DBConfig
	err := viper.UnmarshalKey(cfg.Key(), &cfg)
	if err != nil {
		log.Panicf("unmarshal db config fail, err: %v", err)
	}

	db, err := gorm.Open(mysql.Open(mysqlDSN(cfg)), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   cfg.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		log.Panicf("init db fail, err: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Panicf("get sql.DB fail, err: %v", err)
	}

	// 未配置时使用默认连接池参数
	sqlDB.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 100))
	sqlDB.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 10))
	sqlDB.SetConnMaxLifetime(time.Duration(orDefault(cfg.ConnMaxLifetime, 60)) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(orDefault(cfg.ConnMaxIdleTime, 10)) * time.Minute)

	return db
}

func mysqlDSN(cfg config.DBConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Asia%%2FShanghai",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
