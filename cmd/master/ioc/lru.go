package ioc

import (
	"log"

	"github.com/spf13/viper"
	"github.com/to404hanga/online_judge_sandbox/cmd/master/config"
	"github.com/to404hanga/pkg404/cachex/lru"
)

const defaultLRUSize = 4096

func InitLRUCache() *lru.Cache {
	var cfg config.DispatcherConfig
	err := viper.UnmarshalKey(cfg.Key(), &cfg)
	if err != nil {
		log.Panicf("unmarshal dispatcher config failed, err: %v", err)
	}
	if cfg.LRUSize <= 0 {
		cfg.LRUSize = defaultLRUSize
	}

	cache, err := lru.NewSimpleLRU(cfg.LRUSize)
	if err != nil {
		log.Panicf("init lru failed, err: %v", err)
	}

	return cache
}
