package config

import (
	execconfig "github.com/to404hanga/online_judge_sandbox/executor/config"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

type LoggerConfig struct {
	Development    bool                `yaml:"development"`    // 是否为开发模式
	Type           loggerv2.OutputType `yaml:"type"`           // 日志输出类型
	LogFilePath    string              `yaml:"logFilePath"`    // 日志文件路径
	AutoCreateFile bool                `yaml:"autoCreateFile"` // 是否自动创建文件和目录
}

func (LoggerConfig) Key() string {
	return "log"
}

type DBConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DBName      string `yaml:"database" mapstructure:"database"`
	TablePrefix string `yaml:"tablePrefix"`
	// 连接池配置
	MaxOpenConns    int `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int `yaml:"connMaxLifetime"` // 连接最大生存时间（分钟）
	ConnMaxIdleTime int `yaml:"connMaxIdleTime"` // 连接最大空闲时间（分钟）
}

func (DBConfig) Key() string {
	return "db"
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

func (RedisConfig) Key() string {
	return "redis"
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

func (KafkaConfig) Key() string {
	return "kafka"
}

type TopicConfig struct {
	Task     string `yaml:"task"`     // 待判题任务
	Result   string `yaml:"result"`   // 判题结果
	Accepted string `yaml:"accepted"` // 通过事件
}

func (TopicConfig) Key() string {
	return "topics"
}

const (
	BackendProcess = "process"
	BackendDocker  = "docker"
)

type JudgeConfig struct {
	Backend          string `yaml:"backend"`          // process 或 docker
	WorkspaceRoot    string `yaml:"workspaceRoot"`    // 为空时使用系统临时目录
	DefaultTimeoutMs int    `yaml:"defaultTimeoutMs"` // 单个用例默认超时
	MaxOutputBytes   int64  `yaml:"maxOutputBytes"`   // stdout/stderr 各自的上限, 0 表示不限制
}

func (JudgeConfig) Key() string {
	return "judge"
}

type DockerConfig struct {
	PoolSize      int   `yaml:"poolSize"`      // 每个镜像的容器数
	MemoryLimitMB int   `yaml:"memoryLimitMB"` // 单容器内存上限
	PidsLimit     int64 `yaml:"pidsLimit"`
}

func (DockerConfig) Key() string {
	return "docker"
}

// LanguagesConfig 追加或覆盖内置语言表
type LanguagesConfig []execconfig.LanguageConfig

func (LanguagesConfig) Key() string {
	return "languages"
}
