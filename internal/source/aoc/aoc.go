package aoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/segdecode/internal/domain"
	"github.com/John-Robertt/segdecode/internal/source"
)

// DefaultBaseURL 是 Advent of Code 站点根地址。
const DefaultBaseURL = "https://adventofcode.com"

// maxBodyBytes 限制单次响应大小；谜题输入通常只有几十 KB。
const maxBodyBytes = 4 << 20

// Input 拉取个人谜题输入：<base>/<year>/day/<day>/input（需要 session）。
type Input struct {
	BaseURL string
	Session string
}

func (Input) Name() string { return "aoc" }

func (p Input) Fetch(ctx context.Context, ref domain.PuzzleRef, c *http.Client) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	pageURL := fmt.Sprintf("%s/%d/day/%d/input", baseURL(p.BaseURL), ref.Year, ref.Day)
	if strings.TrimSpace(p.Session) == "" {
		return nil, pageURL, &source.LoginRequiredError{URL: pageURL}
	}
	b, err := fetchURL(ctx, c, pageURL, p.Session)
	return b, pageURL, err
}

// Parse 校验输入是纯文本记录：HTML（通常是登录页）或没有任何 '|' 的内容都视为失败。
func (Input) Parse(ref domain.PuzzleRef, body []byte, pageURL string) ([]byte, error) {
	if looksLikeHTML(body) {
		title := ""
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			title = strings.TrimSpace(doc.Find("title").First().Text())
		}
		return nil, fmt.Errorf("返回了 HTML 页面而不是谜题输入（title=%q），疑似 session 失效", title)
	}
	if !bytes.Contains(body, []byte("|")) {
		return nil, errors.New("输入中没有任何记录行")
	}
	return body, nil
}

// Example 拉取谜题描述页 <base>/<year>/day/<day>，提取其中最大的示例块。
// 描述页不需要登录；Session 仅用于已登录时看到第二部分。
type Example struct {
	BaseURL string
	Session string
}

func (Example) Name() string { return "aoc-example" }

func (p Example) Fetch(ctx context.Context, ref domain.PuzzleRef, c *http.Client) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	pageURL := fmt.Sprintf("%s/%d/day/%d", baseURL(p.BaseURL), ref.Year, ref.Day)
	b, err := fetchURL(ctx, c, pageURL, p.Session)
	return b, pageURL, err
}

// Parse 在 <pre><code> 块中寻找“每行都是一条记录”的块，返回行数最多的那个。
//
// 描述页为了排版会把一条记录折成两行（第一行以 '|' 结尾），这里先还原为一行一条。
func (Example) Parse(ref domain.PuzzleRef, body []byte, pageURL string) ([]byte, error) {
	if len(body) == 0 {
		return nil, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	blocks := doc.Find("article.day-desc pre code")
	if blocks.Length() == 0 {
		blocks = doc.Find("pre code")
	}

	var best []string
	blocks.Each(func(_ int, s *goquery.Selection) {
		lines, ok := entryLines(s.Text())
		if ok && len(lines) > len(best) {
			best = lines
		}
	})
	if len(best) == 0 {
		return nil, errors.New("描述页中未找到示例记录（站点结构可能变化）")
	}
	return []byte(strings.Join(best, "\n") + "\n"), nil
}

// entryLines 还原折行后，要求每个非空行恰好含一个 '|'。
func entryLines(text string) ([]string, bool) {
	var (
		out     []string
		pending string
	)
	for _, raw := range strings.Split(text, "\n") {
		ln := strings.TrimSpace(raw)
		if ln == "" {
			continue
		}
		if pending != "" {
			ln = pending + " " + ln
			pending = ""
		}
		if strings.HasSuffix(ln, "|") {
			pending = ln
			continue
		}
		if strings.Count(ln, "|") != 1 {
			return nil, false
		}
		out = append(out, ln)
	}
	if pending != "" {
		return nil, false
	}
	return out, len(out) > 0
}

func fetchURL(ctx context.Context, c *http.Client, u, session string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if s := strings.TrimSpace(session); s != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: s})
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// AoC 对未登录/过期 session 的输入请求返回 400 + “Please log in”。
		if bytes.Contains(bytes.ToLower(b), []byte("log in")) {
			return nil, &source.LoginRequiredError{URL: u}
		}
		return nil, &source.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Body: truncate(string(b), 200)}
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

func baseURL(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s == "" {
		return DefaultBaseURL
	}
	return s
}

func looksLikeHTML(b []byte) bool {
	b = bytes.TrimSpace(b)
	return bytes.HasPrefix(b, []byte("<"))
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
