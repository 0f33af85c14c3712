package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/to404hanga/online_judge_sandbox/executor/model"
)

const (
	inputExt  = ".in"
	outputExt = ".out"
)

// LoadTestcases reads <name>.in / <name>.out pairs from dir, ordered by name.
func LoadTestcases(dir string) ([]model.TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read testcase dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == inputExt {
			names = append(names, strings.TrimSuffix(e.Name(), inputExt))
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no testcase found in %s", dir)
	}
	sort.Strings(names)

	cases := make([]model.TestCase, 0, len(names))
	for _, name := range names {
		input, err := os.ReadFile(filepath.Join(dir, name+inputExt))
		if err != nil {
			return nil, fmt.Errorf("failed to read input %s: %w", name, err)
		}
		expected, err := readMapped(filepath.Join(dir, name+outputExt))
		if err != nil {
			return nil, fmt.Errorf("failed to read expected output %s: %w", name, err)
		}
		cases = append(cases, model.TestCase{Input: string(input), Expected: expected})
	}
	return cases, nil
}

func readMapped(path string) (string, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0666)
	if err != nil {
		return "", err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	// 空文件无法 mmap
	if info.Size() == 0 {
		return "", nil
	}
	m, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return "", err
	}
	defer m.Unmap()
	return string(m), nil
}
