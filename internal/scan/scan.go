package scan

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/segdecode/internal/domain"
)

// maxLineBytes 是单行保留的上限。一行 14 个 token 远小于它；超出部分被丢弃，
// 该行标记为 Truncated，交给解析阶段按 malformed_line 跳过。
const maxLineBytes = 64 * 1024

// ScanLines 逐行读取 r，返回非空行（保留原始行号）。
// file 会写入每个 Line.File，用于报告定位。
//
// 超长行不会中止扫描：只保留前 maxLineBytes 字节并标记 Truncated，后续行照常读取。
func ScanLines(r io.Reader, file string) ([]domain.Line, error) {
	br := bufio.NewReaderSize(r, 4096)

	lines := make([]domain.Line, 0, 256)
	var (
		no        int
		buf       []byte
		truncated bool
		inLine    bool
	)
	flush := func() {
		no++
		text := strings.TrimSpace(string(buf))
		if text != "" || truncated {
			lines = append(lines, domain.Line{File: file, No: no, Text: text, Truncated: truncated})
		}
		buf = buf[:0]
		truncated = false
		inLine = false
	}

	for {
		frag, isPrefix, err := br.ReadLine()
		if err != nil {
			if inLine {
				flush()
			}
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return nil, err
		}
		inLine = true

		if room := maxLineBytes - len(buf); len(frag) > room {
			frag = frag[:room]
			truncated = true
		}
		buf = append(buf, frag...)

		if !isPrefix {
			flush()
		}
	}
}

// ScanPath 读取 path 下的输入行。
//
// - path 是文件：直接读取，Line.File 为文件名
// - path 是目录：递归读取所有输入文件（见 isInputExt），Line.File 为相对 path 的路径
//
// 目录规则（硬约束）：
// - 永久排除：<path>/cache/
// - excludeDirs：均视为相对 path 的路径（若是绝对路径，则按绝对路径处理）
func ScanPath(path string, excludeDirs []string) ([]domain.Line, error) {
	path = filepath.Clean(path)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return scanFile(path, filepath.Base(path))
	}

	files, err := listInputFiles(path, excludeDirs)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.Line, 0, 256)
	for _, rel := range files {
		ls, err := scanFile(filepath.Join(path, rel), filepath.ToSlash(rel))
		if err != nil {
			return nil, err
		}
		lines = append(lines, ls...)
	}
	return lines, nil
}

func scanFile(abs, name string) ([]domain.Line, error) {
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ScanLines(f, name)
}

func listInputFiles(root string, excludeDirs []string) ([]string, error) {
	excluded := buildExcluded(root, excludeDirs)

	files := make([]string, 0, 16)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isInputExt(strings.ToLower(filepath.Ext(d.Name()))) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Strings(files)
	return files, nil
}

func isInputExt(ext string) bool {
	switch ext {
	case ".txt", ".input":
		return true
	default:
		return false
	}
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, 1+len(excludeDirs))
	excluded = append(excluded, filepath.Join(root, "cache"))

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(filepath.Separator))
}
