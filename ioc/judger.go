package ioc

import (
	"context"
	"log"
	"time"

	"github.com/spf13/viper"
	"github.com/to404hanga/online_judge_sandbox/config"
	"github.com/to404hanga/online_judge_sandbox/executor"
	execconfig "github.com/to404hanga/online_judge_sandbox/executor/config"
	"github.com/to404hanga/online_judge_sandbox/executor/language"
	"github.com/to404hanga/online_judge_sandbox/executor/service"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

const ensureImageTimeout = 10 * time.Minute

func InitJudgeConfig() config.JudgeConfig {
	var cfg config.JudgeConfig
	if err := viper.UnmarshalKey(cfg.Key(), &cfg); err != nil {
		log.Panicf("unmarshal judge config fail, err: %v", err)
	}
	if cfg.Backend == "" {
		cfg.Backend = config.BackendProcess
	}
	return cfg
}

func InitLanguageConfigs() map[string]execconfig.LanguageConfig {
	var extra config.LanguagesConfig
	if err := viper.UnmarshalKey(extra.Key(), &extra); err != nil {
		log.Panicf("unmarshal languages config fail, err: %v", err)
	}
	return execconfig.Merge(extra)
}

func InitSandbox(l loggerv2.Logger, cfg config.JudgeConfig, languages map[string]execconfig.LanguageConfig) service.Sandbox {
	switch cfg.Backend {
	case config.BackendProcess:
		return service.NewProcessSandbox(l, cfg.MaxOutputBytes)
	case config.BackendDocker:
		var dcfg config.DockerConfig
		if err := viper.UnmarshalKey(dcfg.Key(), &dcfg); err != nil {
			log.Panicf("unmarshal docker config fail, err: %v", err)
		}
		sb, err := service.NewDockerSandbox(l, dcfg.PoolSize, dcfg.MemoryLimitMB, dcfg.PidsLimit, cfg.MaxOutputBytes)
		if err != nil {
			log.Panicf("init docker sandbox fail, err: %v", err)
		}
		images := make([]string, 0, len(languages))
		for id, lc := range languages {
			if lc.ImageName == "" {
				log.Panicf("language %s has no imageName for docker backend", id)
			}
			images = append(images, lc.ImageName)
		}
		ctx, cancel := context.WithTimeout(context.Background(), ensureImageTimeout)
		defer cancel()
		if err = sb.EnsureImages(ctx, images); err != nil {
			log.Panicf("ensure images fail, err: %v", err)
		}
		return sb
	default:
		log.Panicf("unknown judge backend %q", cfg.Backend)
		return nil
	}
}

// InitRegistry locates runtimes through the sandbox when it knows its own
// environment, otherwise on the host PATH.
func InitRegistry(sb service.Sandbox, languages map[string]execconfig.LanguageConfig) *language.Registry {
	var locator language.Locator = language.HostLocator{}
	if l, ok := sb.(language.Locator); ok {
		locator = l
	}
	registry, err := language.NewRegistry(languages, locator)
	if err != nil {
		log.Panicf("init language registry fail, err: %v", err)
	}
	return registry
}

func InitJudger(l loggerv2.Logger, cfg config.JudgeConfig, registry *language.Registry, sb service.Sandbox) executor.Judger {
	return executor.NewSandboxJudger(l, registry, sb, cfg.WorkspaceRoot, time.Duration(cfg.DefaultTimeoutMs)*time.Millisecond)
}
