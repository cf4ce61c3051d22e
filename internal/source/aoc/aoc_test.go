package aoc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/segdecode/internal/domain"
	"github.com/John-Robertt/segdecode/internal/source"
)

var day8 = domain.PuzzleRef{Year: 2021, Day: 8}

func TestExampleParse_Fixture(t *testing.T) {
	html, err := os.ReadFile(filepath.Join("testdata", "day8.html"))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}

	text, err := Example{}.Parse(day8, html, "https://adventofcode.com/2021/day/8")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(text)), "\n")
	if len(lines) != 10 {
		t.Fatalf("期望提取 10 行示例，实际 %d：%q", len(lines), string(text))
	}
	// 折行 + <em> 高亮必须被还原成一行纯文本。
	want := "be cfbegad cbdgef fgaecd cgeb fdcge agebfd fecdb fabcd edb | fdgacbe cefdb cefbgd gcbe"
	if lines[0] != want {
		t.Fatalf("第一行不符合预期：\n got=%q\nwant=%q", lines[0], want)
	}
}

func TestExampleParse_NoEntries(t *testing.T) {
	html := []byte(`<html><body><article class="day-desc"><pre><code>no entries here</code></pre></article></body></html>`)
	if _, err := (Example{}).Parse(day8, html, ""); err == nil {
		t.Fatalf("没有示例块时应返回错误")
	}
}

func TestEntryLines(t *testing.T) {
	cases := []struct {
		name string
		in   string
		n    int
		ok   bool
	}{
		{"单行", "a b | c d e f\n", 1, true},
		{"折行", "a b |\nc d e f\ng h |\n i j k l\n", 2, true},
		{"末尾悬空", "a b |\n", 0, false},
		{"无分隔符", "a b c", 0, false},
		{"多个分隔符", "a | b | c", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := entryLines(tc.in)
			if ok != tc.ok || len(got) != tc.n {
				t.Fatalf("期望 n=%d ok=%v，实际 n=%d ok=%v (%q)", tc.n, tc.ok, len(got), ok, got)
			}
		})
	}
}

func TestInputFetch_SendsSessionCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2021/day/8/input" {
			http.NotFound(w, r)
			return
		}
		ck, err := r.Cookie("session")
		if err != nil || ck.Value != "s3cr3t" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Puzzle inputs differ by user.  Please log in to get your puzzle input.\n"))
			return
		}
		_, _ = w.Write([]byte("ab cd | ef gh ab cd\n"))
	}))
	defer srv.Close()

	p := Input{BaseURL: srv.URL + "/", Session: "s3cr3t"}
	body, pageURL, err := p.Fetch(context.Background(), day8, srv.Client())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if pageURL != srv.URL+"/2021/day/8/input" {
		t.Fatalf("pageURL 不符合预期：%q", pageURL)
	}
	if _, err := p.Parse(day8, body, pageURL); err != nil {
		t.Fatalf("Parse 不期望错误：%v", err)
	}

	// session 错误：站点返回 400 + “log in” 提示。
	bad := Input{BaseURL: srv.URL, Session: "wrong"}
	_, _, err = bad.Fetch(context.Background(), day8, srv.Client())
	var le *source.LoginRequiredError
	if !errors.As(err, &le) {
		t.Fatalf("期望 LoginRequiredError，实际 %T %v", err, err)
	}
}

func TestInputFetch_NoSession(t *testing.T) {
	_, _, err := Input{}.Fetch(context.Background(), day8, http.DefaultClient)
	var le *source.LoginRequiredError
	if !errors.As(err, &le) {
		t.Fatalf("缺少 session 时应直接返回 LoginRequiredError，实际 %v", err)
	}
}

func TestInputFetch_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not yet", http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := Input{BaseURL: srv.URL, Session: "x"}.Fetch(context.Background(), day8, srv.Client())
	var hs *source.HTTPStatusError
	if !errors.As(err, &hs) || hs.StatusCode != http.StatusNotFound {
		t.Fatalf("期望 HTTP 404，实际 %T %v", err, err)
	}
}

func TestInputParse_RejectHTMLAndEmpty(t *testing.T) {
	if _, err := (Input{}).Parse(day8, []byte("<!DOCTYPE html><html><head><title>Log In</title></head></html>"), ""); err == nil {
		t.Fatalf("HTML 应被拒绝")
	}
	if _, err := (Input{}).Parse(day8, []byte("1\n2\n3\n"), ""); err == nil {
		t.Fatalf("没有记录行的输入应被拒绝")
	}
}
