// Command judge runs one source file against a local testcase directory and
// prints the execution result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/to404hanga/online_judge_sandbox/executor"
	"github.com/to404hanga/online_judge_sandbox/executor/model"
	"github.com/to404hanga/online_judge_sandbox/ioc"
	"github.com/to404hanga/pkg404/logger"
	loggerv2 "github.com/to404hanga/pkg404/logger/v2"
)

const (
	exitOK             = 0
	exitUsage          = 1
	exitInfrastructure = 2
)

type report struct {
	RequestID string                 `json:"request_id"`
	Language  string                 `json:"language"`
	Result    *model.ExecutionResult `json:"result"`
}

func main() {
	os.Exit(run())
}

func run() int {
	cfile := pflag.String("config", "", "optional config file path")
	lang := pflag.StringP("lang", "l", "python", "language id")
	source := pflag.StringP("source", "s", "", "source file to judge")
	testcases := pflag.StringP("testcases", "t", "", "directory holding <name>.in/<name>.out pairs")
	timeoutMs := pflag.Int("timeout-ms", 0, "per test case timeout in milliseconds, 0 uses the configured default")
	pflag.Parse()

	if *source == "" || *testcases == "" {
		fmt.Fprintln(os.Stderr, "usage: judge --source FILE --testcases DIR [--lang ID] [--timeout-ms N] [--config FILE]")
		return exitUsage
	}

	if *cfile != "" {
		viper.SetConfigFile(*cfile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "read config file failed: %v\n", err)
			return exitUsage
		}
	}
	l := ioc.InitLogger()

	code, err := os.ReadFile(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read source failed: %v\n", err)
		return exitUsage
	}
	cases, err := executor.LoadTestcases(*testcases)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load testcases failed: %v\n", err)
		return exitUsage
	}

	judgeCfg := ioc.InitJudgeConfig()
	languages := ioc.InitLanguageConfigs()
	sandbox := ioc.InitSandbox(l, judgeCfg, languages)
	judger := ioc.InitJudger(l, judgeCfg, ioc.InitRegistry(sandbox, languages), sandbox)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := judger.Close(closeCtx); err != nil {
			l.ErrorContext(closeCtx, "close judger failed", logger.Error(err))
		}
	}()

	requestID := uuid.NewString()
	ctx = loggerv2.ContextWithFields(ctx, logger.String("RequestID", requestID))
	res, err := judger.Run(ctx, &model.ExecutionRequest{
		Code:           string(code),
		Language:       *lang,
		TestCases:      cases,
		PerTestTimeout: time.Duration(*timeoutMs) * time.Millisecond,
	})
	if err != nil {
		l.ErrorContext(ctx, "judge failed", logger.Error(err))
		if errors.Is(err, executor.ErrInfrastructure) {
			return exitInfrastructure
		}
		return exitUsage
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err = enc.Encode(report{RequestID: requestID, Language: *lang, Result: res}); err != nil {
		fmt.Fprintf(os.Stderr, "encode result failed: %v\n", err)
		return exitUsage
	}
	return exitOK
}
