package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/segdecode/internal/domain"
	"github.com/John-Robertt/segdecode/internal/infra/fsx"
)

// Store 提供 <root>/cache/ 下的文件缓存读写。
//
// 约束：
// - 未开启 save：只允许读（ReadOnly=true）
// - 开启 save：允许写（ReadOnly=false）
type Store struct {
	Root     string // 工作目录（segdecode.json 所在目录）
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// InputPath 返回远程谜题输入缓存的绝对路径：cache/puzzles/<source>/<year>-<day>.txt
func (s Store) InputPath(source string, ref domain.PuzzleRef) (string, error) {
	src, err := cleanSource(source)
	if err != nil {
		return "", err
	}
	if !ref.Valid() {
		return "", fmt.Errorf("非法谜题：%s", ref)
	}
	return filepath.Join(s.Root, "cache", "puzzles", src, ref.String()+".txt"), nil
}

// ReportPath 返回 report.json 的绝对路径。
func (s Store) ReportPath() string {
	return filepath.Join(s.Root, "cache", "report.json")
}

// ReadInput 读取缓存；不存在时 ok=false 且 err=nil。
func (s Store) ReadInput(source string, ref domain.PuzzleRef) ([]byte, bool, error) {
	path, err := s.InputPath(source, ref)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WriteInput(source string, ref domain.PuzzleRef, data []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.InputPath(source, ref)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data)
}

func (s Store) WriteReport(data []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path := s.ReportPath()
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data)
}

var sourceNameRE = regexp.MustCompile(`^[a-z0-9_-]+$`)

func cleanSource(src string) (string, error) {
	src = strings.ToLower(strings.TrimSpace(src))
	if src == "" {
		return "", fmt.Errorf("source 不能为空")
	}
	// 最小约束：避免路径穿越。
	if !sourceNameRE.MatchString(src) {
		return "", fmt.Errorf("非法 source：%q", src)
	}
	return src, nil
}
