package config

type JudgerWorkerConfig struct {
	Concurrency              int    `yaml:"concurrency"`              // 并发判题的消费者数量
	XAutoClaimTimeoutMinutes int    `yaml:"xAutoClaimTimeoutMinutes"` // 消息空闲超过该时长后被重新认领
	TestcasePathPrefix       string `yaml:"testcasePathPrefix"`       // 任务未携带用例时从 <prefix>/<problemId> 读取
	MaxDeliveries            int64  `yaml:"maxDeliveries"`            // 超过该投递次数后放弃并发布 runtime_error
	MetricsAddr              string `yaml:"metricsAddr"`
}

func (JudgerWorkerConfig) Key() string {
	return "judgerWorker"
}
