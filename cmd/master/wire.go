//go:build wireinject

package main

import (
	"github.com/google/wire"
	iocself "github.com/to404hanga/online_judge_sandbox/cmd/master/ioc"
	"github.com/to404hanga/online_judge_sandbox/cmd/master/service"
	"github.com/to404hanga/online_judge_sandbox/ioc"
)

func BuildDependency() *service.DispatchService {
	wire.Build(
		ioc.InitRedis,
		ioc.InitKafka,
		ioc.InitLogger,
		ioc.InitTopics,
		iocself.InitJudgerMasterConsumerGroup,
		iocself.InitLRUCache,

		service.NewDispatchService,
	)
	return nil
}
