package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/segdecode/internal/domain"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingInput 表示 source=file 但 CLI 与配置文件都没有给出 input。
	ErrCodeMissingInput = "config_missing_input"
)

const (
	// FileName 是工作目录下的配置文件名（可选）。
	FileName = "segdecode.json"
	// SessionEnv 是 session 的环境变量兜底。
	SessionEnv = "SEGDECODE_SESSION"

	DefaultSource      = "file"
	DefaultConcurrency = 4
	DefaultLogLevel    = "info"
	DefaultYear        = 2021
	DefaultDay         = 8

	// Stdin 作为 input 时表示从标准输入读取。
	Stdin = "-"
)

// Sources 是 --source 允许的取值。
var Sources = []string{"file", "aoc", "aoc-example"}

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --save=false 必须能覆盖 config.save=true。
type CLIArgs struct {
	Input string

	Source    string
	SourceSet bool

	Save    bool
	SaveSet bool

	Verbose bool
}

// FileConfig 对应 segdecode.json 的解析结构。
type FileConfig struct {
	Input       string        `json:"input"`
	Source      string        `json:"source"`
	Save        *bool         `json:"save"`
	Concurrency int           `json:"concurrency"`
	Puzzle      *PuzzleConfig `json:"puzzle"`
	Session     string        `json:"session"`
	BaseURL     string        `json:"base_url"`
	Proxy       *ProxyConfig  `json:"proxy"`
	ExcludeDirs []string      `json:"exclude_dirs"`
	LogLevel    string        `json:"log_level"`
}

type PuzzleConfig struct {
	Year int `json:"year"`
	Day  int `json:"day"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// Root 是工作目录（绝对路径）；cache/ 写在它下面。
	Root string
	// Input 是绝对路径，或 Stdin；source 非 file 时为空。
	Input string

	Source string
	Save   bool

	Concurrency int
	Puzzle      domain.PuzzleRef
	Session     string
	BaseURL     string
	ProxyURL    string
	ExcludeDirs []string
	LogLevel    zapcore.Level
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeMissingInput:
		return fmt.Sprintf("%s：source=file 需要 input（CLI 参数或 %s 的 input 字段）", e.Code, FileName)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取 <cwd>/segdecode.json（可选），与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：
// - input / source / save：CLI > config > 默认
// - session：config > 环境变量 SEGDECODE_SESSION
// - verbose：CLI --verbose 强制 debug，否则 config.log_level，否则 info
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	return loadEffective(cwd, cli, os.Getenv)
}

func loadEffective(cwd string, cli CLIArgs, getenv func(string) string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, _, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return merge(cwdAbs, cli, fc, cfgPath, getenv)
}

func merge(root string, cli CLIArgs, fc FileConfig, cfgPath string, getenv func(string) string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	// source：CLI > config > 默认
	src := DefaultSource
	if cli.SourceSet {
		src = cli.Source
	} else if strings.TrimSpace(fc.Source) != "" {
		src = fc.Source
	}
	src = strings.ToLower(strings.TrimSpace(src))
	if err := validateSource(src); err != nil {
		return invalid("%v", err)
	}

	// save：CLI > config > 默认 false
	save := false
	if cli.SaveSet {
		save = cli.Save
	} else if fc.Save != nil {
		save = *fc.Save
	}

	input := ""
	if src == "file" {
		raw := strings.TrimSpace(cli.Input)
		if raw == "" {
			raw = strings.TrimSpace(fc.Input)
		}
		switch raw {
		case "":
			return EffectiveConfig{}, &Error{Code: ErrCodeMissingInput, Path: cfgPath}
		case Stdin:
			input = Stdin
		default:
			input = absCleanFrom(root, raw)
		}
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	ref := domain.PuzzleRef{Year: DefaultYear, Day: DefaultDay}
	if fc.Puzzle != nil {
		if fc.Puzzle.Year != 0 {
			ref.Year = fc.Puzzle.Year
		}
		if fc.Puzzle.Day != 0 {
			ref.Day = fc.Puzzle.Day
		}
	}
	if !ref.Valid() {
		return invalid("puzzle 无效：year=%d day=%d", ref.Year, ref.Day)
	}

	session := strings.TrimSpace(fc.Session)
	if session == "" && getenv != nil {
		session = strings.TrimSpace(getenv(SessionEnv))
	}

	baseURL := strings.TrimSpace(fc.BaseURL)
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("base_url 无效：%q", baseURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return invalid("base_url 必须是 http/https：%q", baseURL)
		}
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return invalid("proxy.url 无效：%w", err)
		}
	}

	level := zapcore.InfoLevel
	if lv := strings.TrimSpace(fc.LogLevel); lv != "" {
		parsed, err := zapcore.ParseLevel(lv)
		if err != nil {
			return invalid("log_level 无效：%q", lv)
		}
		level = parsed
	}
	if cli.Verbose {
		level = zapcore.DebugLevel
	}

	return EffectiveConfig{
		Root:        root,
		Input:       input,
		Source:      src,
		Save:        save,
		Concurrency: concurrency,
		Puzzle:      ref,
		Session:     session,
		BaseURL:     baseURL,
		ProxyURL:    proxyURL,
		ExcludeDirs: append([]string(nil), fc.ExcludeDirs...),
		LogLevel:    level,
	}, nil
}

func validateSource(s string) error {
	if s == "" {
		return fmt.Errorf("source 不能为空")
	}
	for _, v := range Sources {
		if s == v {
			return nil
		}
	}
	return fmt.Errorf("source 只能是 %s，实际是 %q", strings.Join(Sources, "/"), s)
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
