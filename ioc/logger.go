package ioc

import (
	"log"

	"github.com/spf13/viper"
	"github.com/to404hanga/online_judge_sandbox/config"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

// InitLogger builds the zap logger from the "log" section, or returns the
// global logger when the section is absent.
func InitLogger() loggerv2.Logger {
	var cfg config.LoggerConfig
	if !viper.IsSet(cfg.Key()) {
		return loggerv2.GetGlobalLogger()
	}
	if err := viper.UnmarshalKey(cfg.Key(), &cfg); err != nil {
		log.Panicf("unmarshal logger config fail, err: %v", err)
	}
	if cfg.AutoCreateFile && cfg.LogFilePath == "" {
		log.Panicf("log.autoCreateFile requires log.logFilePath")
	}

	l, err := loggerv2.NewZapContextLoggerWithConfig(loggerv2.LoggerConfig{
		Output: loggerv2.OutputConfig{
			Type:           cfg.Type,
			FilePath:       cfg.LogFilePath,
			AutoCreateFile: cfg.AutoCreateFile,
		},
		Development: cfg.Development,
	})
	if err != nil {
		log.Panicf("init logger fail, err: %v", err)
	}
	return l
}
