package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive")
	}
}

func TestNewClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewClient("  ")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewClient("http://[::1"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_SetsUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c, err := NewClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	got, _ := ua.Load().(string)
	if !strings.Contains(got, "segdecode") {
		t.Fatalf("期望使用内置 UA，实际 %q", got)
	}
}

func TestTransport_BoundedRetry(t *testing.T) {
	// 每次 RoundTrip 都会调用一次 Proxy 回调：用它计数并制造错误。
	var calls int32
	base := &http.Transport{
		Proxy: func(*http.Request) (*url.URL, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("proxy boom")
		},
	}
	tr := &Transport{Base: base, ua: globalUA, RetryMax: 2}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.test/", nil)
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatalf("期望错误")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("期望 3 次尝试（1 + 2 次重试），实际 %d", got)
	}
}

func TestTransport_RetryOnlyTransientStatus(t *testing.T) {
	cases := []struct {
		name  string
		code  int
		calls int32
	}{
		{"登录失效 400 不重试", http.StatusBadRequest, 1},
		{"未解锁 404 不重试", http.StatusNotFound, 1},
		{"限流 429 重试", http.StatusTooManyRequests, 3},
		{"站点故障 503 重试", http.StatusServiceUnavailable, 3},
		{"成功", http.StatusOK, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte("Please log in to get your puzzle input."))
			}))
			defer srv.Close()

			tr := &Transport{Base: &http.Transport{}, ua: globalUA, RetryMax: 2}
			req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
			resp, err := tr.RoundTrip(req)
			if err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tc.code {
				t.Fatalf("应返回最后一次响应的状态码 %d，实际 %d", tc.code, resp.StatusCode)
			}
			if got := atomic.LoadInt32(&calls); got != tc.calls {
				t.Fatalf("期望请求 %d 次，实际 %d", tc.calls, got)
			}
		})
	}
}
