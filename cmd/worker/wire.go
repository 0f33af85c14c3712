//go:build wireinject

package main

import (
	"github.com/google/wire"
	iocself "github.com/to404hanga/online_judge_sandbox/cmd/worker/ioc"
	"github.com/to404hanga/online_judge_sandbox/cmd/worker/service"
	"github.com/to404hanga/online_judge_sandbox/event"
	"github.com/to404hanga/online_judge_sandbox/ioc"
)

func BuildDependency() *service.JudgeService {
	wire.Build(
		ioc.InitLogger,
		ioc.InitRedis,
		ioc.InitKafka,
		ioc.InitSyncProducer,
		ioc.InitTopics,
		event.NewSaramaProducer,
		event.NewResultPublisher,
		ioc.InitJudgeConfig,
		ioc.InitLanguageConfigs,
		ioc.InitSandbox,
		ioc.InitRegistry,
		ioc.InitJudger,
		iocself.InitJudgerWorkerService,
	)
	return nil
}
