package config

// LanguageConfig describes how to run source code of one language.
type LanguageConfig struct {
	ID        string   `yaml:"id"`
	Extension string   `yaml:"extension"`
	Runtimes  []string `yaml:"runtimes"` // 候选解释器, 按顺序查找, 第一个可用的生效
	Command   string   `yaml:"command"`  // 调用模板, {runtime} 与 {src} 会被替换
	ImageName string   `yaml:"imageName"`
}

const DefaultCommand = "{runtime} {src}"

var LanguageConfigs = map[string]LanguageConfig{
	"python": {
		ID:        "python",
		Extension: ".py",
		Runtimes:  []string{"python3", "python"},
		Command:   DefaultCommand,
		ImageName: "python:3.11-slim",
	},
	"javascript": {
		ID:        "javascript",
		Extension: ".js",
		Runtimes:  []string{"node", "nodejs"},
		Command:   DefaultCommand,
		ImageName: "node:20-slim",
	},
}

// Merge overlays extra entries on top of the built-in table.
func Merge(extra []LanguageConfig) map[string]LanguageConfig {
	merged := make(map[string]LanguageConfig, len(LanguageConfigs)+len(extra))
	for id, cfg := range LanguageConfigs {
		merged[id] = cfg
	}
	for _, cfg := range extra {
		if cfg.ID == "" {
			continue
		}
		if cfg.Command == "" {
			cfg.Command = DefaultCommand
		}
		merged[cfg.ID] = cfg
	}
	return merged
}
