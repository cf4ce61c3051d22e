package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/segdecode/internal/domain"
)

// Source 把“站点变化”限制在 source 包内部；核心流程只依赖统一接口与纯文本输入。
//
// 约束：
// - Fetch 不做缓存、不做重试（这些由 httpx/cache 层统一实现）
// - Parse 必须是纯函数：相同输入 => 相同输出；返回逐行的记录文本
// - pageURL 是实际请求的地址（用于报告追溯）
type Source interface {
	Name() string
	Fetch(ctx context.Context, ref domain.PuzzleRef, c *http.Client) (body []byte, pageURL string, err error)
	Parse(ref domain.PuzzleRef, body []byte, pageURL string) ([]byte, error)
}

// Error 是 source 阶段的结构化错误：Stage 为 "fetch" 或 "parse"。
type Error struct {
	Source string
	Stage  string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s 失败：%v", e.Source, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 把 source 错误映射为 report 的 error_code。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Stage == "parse" {
		return domain.ErrCodeParseFailed
	}
	return domain.ErrCodeFetchFailed
}

// Load 用注册表中名为 name 的 source 拉取并解析输入。
//
// 返回值：
// - text：逐行记录文本（可直接交给 scan.ScanLines）
// - pageURL：实际请求地址
func Load(ctx context.Context, reg Registry, name string, ref domain.PuzzleRef, c *http.Client) (text []byte, pageURL string, err error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !ref.Valid() {
		return nil, "", fmt.Errorf("非法谜题：%s", ref)
	}

	s, ok := reg.Get(name)
	if !ok {
		return nil, "", fmt.Errorf("source 未注册：%q", name)
	}

	body, pageURL, err := s.Fetch(ctx, ref, c)
	if err != nil {
		return nil, "", &Error{Source: name, Stage: "fetch", Err: err}
	}
	text, err = s.Parse(ref, body, pageURL)
	if err != nil {
		return nil, pageURL, &Error{Source: name, Stage: "parse", Err: err}
	}
	return text, pageURL, nil
}
