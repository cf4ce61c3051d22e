package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/segdecode/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON（进度/配置/日志必须走 stderr）。
	root := t.TempDir()
	in := filepath.Join(root, "day08.txt")
	content := "acedgfb cdfbe gcdfa fbcad dab cefabd cdfgeb eafb cagedb ab | cdfeb fcadb cdfeb cdbaf\n" +
		"be cfbegad cbdgef fgaecd cgeb fdcge agebfd fecdb fabcd edb | fdgacbe cefdb cefbgd gcbe\n"
	if err := os.WriteFile(in, []byte(content), 0o644); err != nil {
		t.Fatalf("写入输入失败：%v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/segdecode", "run", in, "--verbose")
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if rr.Summary.TotalValue != 5353+8394 || rr.Summary.UniqueCount != 2 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
	if strings.Contains(stdout.String(), "配置（生效）") || strings.Contains(stdout.String(), "run finished") {
		t.Fatalf("stdout 不应包含进度/日志输出：%q", stdout.String())
	}

	if !strings.Contains(stderr.String(), "完成：entries=2") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}
	if !strings.Contains(stderr.String(), `"msg":"run finished"`) {
		t.Fatalf("stderr 缺少 zap 日志：%q", stderr.String())
	}
}
