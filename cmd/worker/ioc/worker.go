package ioc

import (
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/to404hanga/online_judge_sandbox/cmd/worker/config"
	"github.com/to404hanga/online_judge_sandbox/cmd/worker/service"
	"github.com/to404hanga/online_judge_sandbox/event"
	"github.com/to404hanga/online_judge_sandbox/executor"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

func InitJudgerWorkerService(l loggerv2.Logger, rdb redis.Cmdable, judger executor.Judger, publisher *event.ResultPublisher) *service.JudgeService {
	var cfg config.JudgerWorkerConfig
	err := viper.UnmarshalKey(cfg.Key(), &cfg)
	if err != nil {
		log.Panicf("unmarshal judger worker config failed, err: %v", err)
	}
	if cfg.XAutoClaimTimeoutMinutes <= 0 {
		cfg.XAutoClaimTimeoutMinutes = 5
	}

	return service.NewJudgeService(l, rdb, judger, publisher, cfg.Concurrency,
		time.Duration(cfg.XAutoClaimTimeoutMinutes)*time.Minute, cfg.TestcasePathPrefix, cfg.MaxDeliveries)
}
