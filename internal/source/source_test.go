package source

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/John-Robertt/segdecode/internal/domain"
)

type stubSource struct {
	name string

	fetchErr error
	parseErr error

	body []byte
	url  string

	fetchCalls int
	parseCalls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, ref domain.PuzzleRef, c *http.Client) ([]byte, string, error) {
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, "", s.fetchErr
	}
	return s.body, s.url, nil
}

func (s *stubSource) Parse(ref domain.PuzzleRef, body []byte, pageURL string) ([]byte, error) {
	s.parseCalls++
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	return body, nil
}

var day8 = domain.PuzzleRef{Year: 2021, Day: 8}

func TestLoad_OK(t *testing.T) {
	s := &stubSource{name: "aoc", body: []byte("a | b c d e\n"), url: "https://example.test/2021/day/8/input"}
	reg, err := NewRegistry(s)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	text, pageURL, err := Load(context.Background(), reg, " AOC ", day8, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if string(text) != "a | b c d e\n" || pageURL != s.url {
		t.Fatalf("结果不符合预期：text=%q url=%q", text, pageURL)
	}
}

func TestLoad_StageErrors(t *testing.T) {
	fetchFail := &stubSource{name: "aoc", fetchErr: errors.New("nope")}
	parseFail := &stubSource{name: "aoc-example", body: []byte("<html/>"), parseErr: errors.New("bad")}
	reg, err := NewRegistry(fetchFail, parseFail)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	_, _, err = Load(context.Background(), reg, "aoc", day8, nil)
	var se *Error
	if !errors.As(err, &se) || se.Stage != "fetch" || Code(err) != domain.ErrCodeFetchFailed {
		t.Fatalf("期望 fetch 阶段错误，实际 %v", err)
	}
	if fetchFail.parseCalls != 0 {
		t.Fatalf("fetch 失败后不应调用 Parse")
	}

	_, _, err = Load(context.Background(), reg, "aoc-example", day8, nil)
	if !errors.As(err, &se) || se.Stage != "parse" || Code(err) != domain.ErrCodeParseFailed {
		t.Fatalf("期望 parse 阶段错误，实际 %v", err)
	}
}

func TestLoad_UnknownSourceAndBadRef(t *testing.T) {
	reg, err := NewRegistry(&stubSource{name: "aoc"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, _, err := Load(context.Background(), reg, "nope", day8, nil); err == nil {
		t.Fatalf("未注册的 source 应返回错误")
	}
	if _, _, err := Load(context.Background(), reg, "aoc", domain.PuzzleRef{Year: 2021}, nil); err == nil {
		t.Fatalf("非法谜题应返回错误")
	}
}

func TestNewRegistry_RejectDuplicate(t *testing.T) {
	if _, err := NewRegistry(&stubSource{name: "aoc"}, &stubSource{name: "AOC"}); err == nil {
		t.Fatalf("重复名称应返回错误")
	}
	reg, _ := NewRegistry(&stubSource{name: "b"}, &stubSource{name: "a"})
	if got := reg.Names(); len(got) != 2 || got[0] != "a" {
		t.Fatalf("Names 应排序：%v", got)
	}
}
