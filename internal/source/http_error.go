package source

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
// Source.Fetch 可以返回该错误，让上层生成更可操作的 error_msg。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string // 截断后的响应正文（AoC 的 400 正文会说明需要登录）
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, body)
}

// LoginRequiredError 表示站点要求登录（缺少或过期的 session）。
// 不尝试绕过，直接视为 fetch_failed，由上层提示用户配置 session。
type LoginRequiredError struct {
	URL string
}

func (e *LoginRequiredError) Error() string {
	return "需要登录：请在 segdecode.json 配置 session 或设置环境变量 SEGDECODE_SESSION"
}
