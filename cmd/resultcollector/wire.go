//go:build wireinject

package main

import (
	"github.com/google/wire"
	iocself "github.com/to404hanga/online_judge_sandbox/cmd/resultcollector/ioc"
	"github.com/to404hanga/online_judge_sandbox/cmd/resultcollector/service"
	"github.com/to404hanga/online_judge_sandbox/ioc"
)

func BuildDependency() *service.ResultCollectorService {
	wire.Build(
		ioc.InitLogger,
		ioc.InitDB,
		ioc.InitKafka,
		ioc.InitTopics,
		iocself.InitResultCollectorConsumerGroup,
		iocself.InitRecordRepository,
		service.NewResultCollectorService,
	)
	return nil
}
