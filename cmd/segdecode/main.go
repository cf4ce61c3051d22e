package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/segdecode/internal/app/run"
	"github.com/John-Robertt/segdecode/internal/config"
	"github.com/John-Robertt/segdecode/internal/domain"
	"github.com/John-Robertt/segdecode/internal/source"
	"github.com/John-Robertt/segdecode/internal/source/aoc"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Input:     ra.Input,
		Source:    ra.Source,
		SourceSet: ra.SourceSet,
		Save:      ra.Save,
		SaveSet:   ra.SaveSet,
		Verbose:   ra.Verbose,
	})
	if err != nil {
		emitReport(reportForConfigError(ra, err))
		return 1
	}

	logger, err := newLogger(eff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败：%v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	reg, err := source.NewRegistry(
		aoc.Input{BaseURL: eff.BaseURL, Session: eff.Session},
		aoc.Example{BaseURL: eff.BaseURL, Session: eff.Session},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化 source registry 失败：%v\n", err)
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	// Ctrl-C：已完成的行照常输出报告，末尾附带 cancelled 合成条目。
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rr := run.ExecuteWithObserver(ctx, eff, run.Options{
		Logger:   logger,
		Stdin:    os.Stdin,
		Registry: reg,
	}, obs)

	// save：写入 <root>/cache/report.json；否则禁止落盘。
	reportPath := ""
	if eff.Save {
		p, err := run.WriteReport(eff, rr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
			emitReport(rr)
			return 1
		}
		reportPath = p
	}

	emitReport(rr)
	if interactive && reportPath != "" {
		fmt.Fprintf(progressW, "report: %s\n", reportPath)
	}
	return exitCode(rr)
}

func exitCode(rr domain.RunReport) int {
	if rr.Summary.Skipped == 0 && rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

// newLogger 构造诊断日志：生产配置（JSON，写 stderr），级别来自 log_level / --verbose。
func newLogger(eff config.EffectiveConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(eff.LogLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

type runArgs struct {
	Input     string
	Source    string
	SourceSet bool
	Save      bool
	SaveSet   bool
	Verbose   bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--source":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--source 需要一个值")
			}
			i++
			ra.Source = args[i]
			ra.SourceSet = true
		case strings.HasPrefix(a, "--source="):
			ra.Source = strings.TrimPrefix(a, "--source=")
			ra.SourceSet = true
		case a == "--save":
			ra.Save = true
			ra.SaveSet = true
		case strings.HasPrefix(a, "--save="):
			v := strings.TrimPrefix(a, "--save=")
			switch v {
			case "true":
				ra.Save = true
			case "false":
				ra.Save = false
			default:
				return runArgs{}, fmt.Errorf("--save 只能是 true 或 false，实际是 %q", v)
			}
			ra.SaveSet = true
		case a == "--verbose" || a == "-v":
			ra.Verbose = true
		case a == config.Stdin:
			if ra.Input != "" {
				return runArgs{}, fmt.Errorf("重复的 input：%q 与 %q", ra.Input, a)
			}
			ra.Input = a
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Input != "" {
				return runArgs{}, fmt.Errorf("重复的 input：%q 与 %q", ra.Input, a)
			}
			ra.Input = a
		}
	}

	if ra.SourceSet {
		ok := false
		for _, s := range config.Sources {
			if ra.Source == s {
				ok = true
			}
		}
		switch {
		case ra.Source == "":
			return runArgs{}, fmt.Errorf("--source 不能为空")
		case !ok:
			return runArgs{}, fmt.Errorf("--source 只能是 %s，实际是 %q", strings.Join(config.Sources, "|"), ra.Source)
		}
	}
	if ra.Input != "" && ra.SourceSet && ra.Source != "file" {
		return runArgs{}, fmt.Errorf("--source %s 不接受 input 参数", ra.Source)
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  segdecode run [input] [--source file|aoc|aoc-example] [--save[=true|false]] [--verbose]

命令：
  run    解码七段显示器记录并汇总

使用 "segdecode run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  segdecode run [input] [--source file|aoc|aoc-example] [--save[=true|false]] [--verbose]

参数：
  input       输入文件、目录（*.txt / *.input，排除 cache/）或 "-"（stdin）
  --source    输入来源：file|aoc|aoc-example（未指定则读配置文件；最终默认 file）
  --save      缓存下载的输入并写入 cache/report.json；支持 --save=false 覆盖配置中的 save=true
  --verbose   输出 debug 级诊断日志（stderr）
  -h, --help  显示帮助

配置文件：当前目录下的 segdecode.json（可选）；session 可用环境变量 SEGDECODE_SESSION 提供。
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summaryLine(rr))
		writeProblems(os.Stderr, rr)
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(os.Stderr, summaryLine(rr))
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：entries=%d decoded=%d skipped=%d failed=%d unique_count=%d total_value=%d",
		s.Entries, s.Decoded, s.Skipped, s.Failed, s.UniqueCount, s.TotalValue,
	)
}

// writeProblems 逐条列出 skipped / failed，便于定位到具体行。
func writeProblems(w io.Writer, rr domain.RunReport) {
	for _, it := range rr.Items {
		if it.Status == domain.StatusDecoded {
			continue
		}
		key := "<run>"
		if it.File != "" || it.Line != 0 {
			key = fmt.Sprintf("%s:%d", it.File, it.Line)
		}
		fmt.Fprintf(w, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
	}
}

func reportForConfigError(ra runArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	input := ra.Input
	if input != "" && input != config.Stdin {
		if abs, e := filepath.Abs(input); e == nil {
			input = abs
		}
	}
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		Source:     ra.Source,
		Input:      input,
		Saved:      ra.SaveSet && ra.Save,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.EntryResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
