package ioc

import (
	"log"

	"github.com/IBM/sarama"
	"github.com/spf13/viper"
	"github.com/to404hanga/online_judge_sandbox/config"
)

func InitKafka() sarama.Client {
	var cfg config.KafkaConfig
	err := viper.UnmarshalKey(cfg.Key(), &cfg)
	if err != nil {
		log.Panicf("unmarshal kafka config fail, err: %v", err)
	}
	saramaCfg := sarama.NewConfig()
	// SyncProducer 需要开启
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	client, err := sarama.NewClient(cfg.Brokers, saramaCfg)
	if err != nil {
		log.Panicf("init kafka client fail, err: %v", err)
	}
	return client
}

func InitSyncProducer(client sarama.Client) sarama.SyncProducer {
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		log.Panicf("init sync producer fail, err: %v", err)
	}
	return p
}

func InitConsumerGroup(client sarama.Client, groupID string) sarama.ConsumerGroup {
	cg, err := sarama.NewConsumerGroupFromClient(groupID, client)
	if err != nil {
		log.Panicf("init consumer group %s fail, err: %v", groupID, err)
	}
	return cg
}

func InitTopics() config.TopicConfig {
	var cfg config.TopicConfig
	if err := viper.UnmarshalKey(cfg.Key(), &cfg); err != nil {
		log.Panicf("unmarshal topic config fail, err: %v", err)
	}
	if cfg.Task == "" || cfg.Result == "" || cfg.Accepted == "" {
		log.Panicf("topics.task, topics.result and topics.accepted are required")
	}
	return cfg
}
