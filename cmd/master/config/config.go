package config

type DispatcherConfig struct {
	LRUSize int `yaml:"lruSize"` // 记录最近已转发的提交数, 用于去重
}

func (DispatcherConfig) Key() string {
	return "dispatcher"
}
