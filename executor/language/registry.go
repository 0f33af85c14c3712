// Package language resolves language identifiers into invocation recipes.
package language

import (
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/google/shlex"
	"github.com/to404hanga/online_judge_sandbox/executor/config"
)

var (
	ErrLanguageUnsupported = errors.New("language not supported")
	ErrRuntimeMissing      = errors.New("runtime not found")
	ErrInvalidCommand      = errors.New("invalid command template")
)

const (
	runtimeToken = "{runtime}"
	srcToken     = "{src}"
	sourceBase   = "solution"
)

type unsupportedError struct {
	language string
}

func (e *unsupportedError) Error() string {
	return fmt.Sprintf("Language %s not supported", e.language)
}

func (e *unsupportedError) Unwrap() error {
	return ErrLanguageUnsupported
}

// Locator finds the executable backing a language runtime.
type Locator interface {
	Locate(candidates []string) (string, error)
}

// HostLocator searches PATH on the host.
type HostLocator struct{}

func (HostLocator) Locate(candidates []string) (string, error) {
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrRuntimeMissing, strings.Join(candidates, ", "))
}

// Recipe is a resolved way to run one source file.
type Recipe struct {
	Language   string
	SourceFile string
	ImageName  string
	Runtime    string
	argv       []string
}

// Command expands the recipe template for the given source path.
func (r Recipe) Command(sourcePath string) []string {
	args := make([]string, len(r.argv))
	for i, field := range r.argv {
		field = strings.ReplaceAll(field, runtimeToken, r.Runtime)
		args[i] = strings.ReplaceAll(field, srcToken, sourcePath)
	}
	return args
}

type entry struct {
	recipe     Recipe
	runtimeErr error
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	entries map[string]entry
}

// NewRegistry locates every runtime once. A language whose runtime is absent stays
// registered and resolves to ErrRuntimeMissing.
func NewRegistry(configs map[string]config.LanguageConfig, locator Locator) (*Registry, error) {
	if locator == nil {
		locator = HostLocator{}
	}
	entries := make(map[string]entry, len(configs))
	for id, cfg := range configs {
		argv, err := parseTemplate(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("language %s: %w", id, err)
		}
		e := entry{recipe: Recipe{
			Language:   id,
			SourceFile: sourceBase + cfg.Extension,
			ImageName:  cfg.ImageName,
			argv:       argv,
		}}
		runtime, err := locator.Locate(cfg.Runtimes)
		if err != nil {
			e.runtimeErr = fmt.Errorf("language %s: %w", id, err)
		} else {
			e.recipe.Runtime = runtime
		}
		entries[id] = e
	}
	return &Registry{entries: entries}, nil
}

func (r *Registry) Resolve(language string) (Recipe, error) {
	e, ok := r.entries[language]
	if !ok {
		return Recipe{}, &unsupportedError{language: language}
	}
	if e.runtimeErr != nil {
		return Recipe{}, e.runtimeErr
	}
	return e.recipe, nil
}

// Languages lists registered identifiers in sorted order.
func (r *Registry) Languages() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func parseTemplate(tpl string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		tpl = config.DefaultCommand
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCommand)
	}
	if !strings.Contains(tpl, srcToken) {
		return nil, fmt.Errorf("%w: %s missing", ErrInvalidCommand, srcToken)
	}
	return fields, nil
}
