package run

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/segdecode/internal/config"
	"github.com/John-Robertt/segdecode/internal/digits"
	"github.com/John-Robertt/segdecode/internal/domain"
	"github.com/John-Robertt/segdecode/internal/infra/cache"
	"github.com/John-Robertt/segdecode/internal/infra/httpx"
	"github.com/John-Robertt/segdecode/internal/scan"
	"github.com/John-Robertt/segdecode/internal/signal"
	"github.com/John-Robertt/segdecode/internal/source"
)

// Options 是 run 的外部依赖；零值可用于 source=file。
type Options struct {
	// Logger 为 nil 时不输出诊断日志。
	Logger *zap.Logger
	// Stdin 在 input 为 "-" 时读取；为 nil 时使用 os.Stdin。
	Stdin io.Reader
	// Registry 提供远程 source（aoc / aoc-example）。
	Registry source.Registry
	// Client 为 nil 时按 proxy 配置构造（httpx.NewClient）。
	Client *http.Client
}

// Execute 执行一次 run，并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为条目级跳过（单行失败不影响其他行）。
func Execute(ctx context.Context, eff config.EffectiveConfig, opts Options) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, opts, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, opts Options, obs Observer) domain.RunReport {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Source:    eff.Source,
		Input:     eff.Input,
		Saved:     eff.Save,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.EntryResult, 0, 256),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		log.Info("run finished",
			zap.String("source", rr.Source),
			zap.Int("entries", rr.Summary.Entries),
			zap.Int("skipped", rr.Summary.Skipped),
			zap.Int("unique_count", rr.Summary.UniqueCount),
			zap.Int("total_value", rr.Summary.TotalValue),
		)
		return rr
	}

	loadStarted := time.Now()
	ld, err := load(ctx, eff, opts, log)
	if err != nil {
		code := domain.ErrCodeIOFailed
		var le *loadError
		if errors.As(err, &le) {
			code = le.code
		}
		log.Warn("load failed", zap.String("error_code", code), zap.Error(err))
		rr.Items = append(rr.Items, syntheticFailed(code, err.Error()))
		return finish()
	}
	if ld.input != "" {
		rr.Input = ld.input
	}
	lines := ld.lines

	if obs != nil {
		obs.OnPhaseDone("load", map[string]any{
			"files":  ld.files,
			"lines":  len(lines),
			"cached": ld.cached,
		}, time.Since(loadStarted))
	}

	// 执行阶段：按行并发（errgroup 限流），行内纯计算。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers": workers,
			"total":   len(lines),
		}, 0)
	}

	type execResult struct {
		res domain.EntryResult
		dur time.Duration
	}
	results := make(chan execResult, len(lines))

	go func() {
		var g errgroup.Group
		g.SetLimit(workers)
		for _, ln := range lines {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				started := time.Now()
				res := processEntry(ln)
				results <- execResult{res: res, dur: time.Since(started)}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	done := 0
	for it := range results {
		done++
		rr.Items = append(rr.Items, it.res)
		if it.res.Status == domain.StatusSkipped {
			log.Debug("entry skipped",
				zap.String("file", it.res.File),
				zap.Int("line", it.res.Line),
				zap.String("error_code", it.res.ErrorCode),
				zap.String("error_msg", it.res.ErrorMsg),
			)
		}
		if obs != nil {
			obs.OnEntryDone(done, len(lines), it.res, it.dur)
		}
	}

	if err := ctx.Err(); err != nil && done < len(lines) {
		log.Warn("run cancelled", zap.Int("done", done), zap.Int("total", len(lines)))
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeCancelled,
			fmt.Sprintf("已取消：完成 %d/%d 行（%v）", done, len(lines), err)))
	}
	return finish()
}

// Aggregate 是单线程的参考汇总：逐行处理并合并 Tally。
// Execute 的 summary 与它对同一输入的结果一致。
func Aggregate(lines []domain.Line) domain.Tally {
	var t domain.Tally
	for _, ln := range lines {
		t = t.Merge(processEntry(ln).Tally())
	}
	return t
}

// processEntry 处理一行：解析 -> 求解 -> 解码。
//
// - 行解析失败：skipped，unique=0（不计入任何累加器）
// - 求解/解码失败：skipped，unique 仍按输出长度计数
func processEntry(ln domain.Line) domain.EntryResult {
	res := domain.EntryResult{
		File:   ln.File,
		Line:   ln.No,
		Status: domain.StatusDecoded,
	}

	e, err := signal.ParseLine(ln)
	if err != nil {
		res.Status = domain.StatusSkipped
		res.ErrorCode = codeOr(signal.Code(err), domain.ErrCodeMalformedLine)
		res.ErrorMsg = err.Error()
		return res
	}
	res.Unique = e.UniqueCount()

	v, err := digits.DecodeEntry(e)
	if err != nil {
		res.Status = domain.StatusSkipped
		res.ErrorCode = codeOr(digits.Code(err), domain.ErrCodeAmbiguousPattern)
		res.ErrorMsg = err.Error()
		return res
	}
	res.Value = v
	return res
}

func codeOr(code, fallback string) string {
	if code == "" {
		return fallback
	}
	return code
}

func syntheticFailed(code, msg string) domain.EntryResult {
	return domain.EntryResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

// loadError 携带 run 级 error_code。
type loadError struct {
	code string
	err  error
}

func (e *loadError) Error() string { return e.err.Error() }
func (e *loadError) Unwrap() error { return e.err }

type loaded struct {
	lines  []domain.Line
	files  int
	input  string // 实际输入位置（远程 source 时为 URL 或缓存路径）
	cached bool
}

func load(ctx context.Context, eff config.EffectiveConfig, opts Options, log *zap.Logger) (loaded, error) {
	if err := ctx.Err(); err != nil {
		return loaded{}, &loadError{code: domain.ErrCodeCancelled, err: err}
	}

	if eff.Source == "" || eff.Source == "file" {
		return loadLocal(eff, opts)
	}

	store := cache.New(eff.Root, !eff.Save)

	// 先尝试 cache（只读），命中则不再打网络。
	if b, ok, err := store.ReadInput(eff.Source, eff.Puzzle); err == nil && ok {
		lines, err := scan.ScanLines(bytes.NewReader(b), inputName(eff))
		if err == nil && len(lines) > 0 {
			path, _ := store.InputPath(eff.Source, eff.Puzzle)
			log.Debug("input cache hit", zap.String("path", path))
			return loaded{lines: lines, files: 1, input: path, cached: true}, nil
		}
		// 坏缓存：忽略，走网络（save 会写回新缓存）。
		if err != nil {
			log.Warn("ignoring unreadable input cache", zap.Error(err))
		} else {
			log.Warn("ignoring empty input cache", zap.Int("bytes", len(b)))
		}
	} else if err != nil {
		log.Warn("input cache read failed", zap.Error(err))
	}

	client := opts.Client
	if client == nil {
		c, err := httpx.NewClient(eff.ProxyURL)
		if err != nil {
			return loaded{}, &loadError{code: domain.ErrCodeConfigInvalid, err: fmt.Errorf("proxy.url 无效：%w", err)}
		}
		client = c
	}

	text, pageURL, err := source.Load(ctx, opts.Registry, eff.Source, eff.Puzzle, client)
	if err != nil {
		if ctx.Err() != nil {
			return loaded{}, &loadError{code: domain.ErrCodeCancelled, err: err}
		}
		var se *source.Error
		if errors.As(err, &se) && se.Stage == "parse" {
			return loaded{}, &loadError{code: domain.ErrCodeParseFailed, err: errors.New(humanizeParseError(se.Source, se.Err))}
		}
		if errors.As(err, &se) {
			return loaded{}, &loadError{code: domain.ErrCodeFetchFailed, err: errors.New(humanizeFetchError(se.Source, se.Err))}
		}
		return loaded{}, &loadError{code: domain.ErrCodeConfigInvalid, err: err}
	}
	log.Debug("input fetched", zap.String("url", pageURL), zap.Int("bytes", len(text)))

	if eff.Save {
		if err := store.WriteInput(eff.Source, eff.Puzzle, text); err != nil {
			// 缓存写失败不影响本次解码。
			log.Warn("input cache write failed", zap.Error(err))
		}
	}

	lines, err := scan.ScanLines(bytes.NewReader(text), inputName(eff))
	if err != nil {
		return loaded{}, &loadError{code: domain.ErrCodeParseFailed, err: err}
	}
	return loaded{lines: lines, files: 1, input: pageURL}, nil
}

func loadLocal(eff config.EffectiveConfig, opts Options) (loaded, error) {
	if eff.Input == config.Stdin {
		r := opts.Stdin
		if r == nil {
			r = os.Stdin
		}
		lines, err := scan.ScanLines(r, "stdin")
		if err != nil {
			return loaded{}, &loadError{code: domain.ErrCodeIOFailed, err: fmt.Errorf("读取 stdin 失败：%w", err)}
		}
		return loaded{lines: lines, files: 1}, nil
	}

	lines, err := scan.ScanPath(eff.Input, eff.ExcludeDirs)
	if err != nil {
		return loaded{}, &loadError{code: domain.ErrCodeIOFailed, err: fmt.Errorf("扫描失败：%w", err)}
	}
	return loaded{lines: lines, files: countFiles(lines)}, nil
}

func countFiles(lines []domain.Line) int {
	n := 0
	prev := ""
	for i, ln := range lines {
		if i == 0 || ln.File != prev {
			n++
			prev = ln.File
		}
	}
	return n
}

// inputName 是远程输入在 report 中的 file 字段，例如 aoc/2021-8。
func inputName(eff config.EffectiveConfig) string {
	return eff.Source + "/" + eff.Puzzle.String()
}

// WriteReport 在开启 save 时把 report 原子写入 <root>/cache/report.json。
func WriteReport(eff config.EffectiveConfig, rr domain.RunReport) (string, error) {
	store := cache.New(eff.Root, !eff.Save)
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return "", err
	}
	b = append(b, '\n')
	if err := store.WriteReport(b); err != nil {
		return "", err
	}
	return store.ReportPath(), nil
}

func humanizeFetchError(sourceName string, err error) string {
	if err == nil {
		return sourceName + " 拉取失败"
	}

	var le *source.LoginRequiredError
	if errors.As(err, &le) {
		return fmt.Sprintf("%s %s", sourceName, le.Error())
	}

	// HTTP 非 2xx：尽量给出可操作提示。
	var hs *source.HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（谜题可能尚未解锁，或 puzzle.year/day 有误）。", sourceName)
		case 429:
			return fmt.Sprintf("%s 返回 HTTP 429（请求过于频繁）。建议开启 --save 缓存输入，稍后重试。", sourceName)
		default:
			if hs.StatusCode >= 500 {
				return fmt.Sprintf("%s 返回 HTTP %d（站点暂不可用），稍后重试。", sourceName, hs.StatusCode)
			}
			return fmt.Sprintf("%s 返回 HTTP %d。", sourceName, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 拉取超时。建议检查网络/代理后重试。", sourceName)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return fmt.Sprintf("%s 连接失败（TLS/SSL）。建议配置 proxy.url 或稍后重试。", sourceName)
	}

	return fmt.Sprintf("%s 拉取失败：%v", sourceName, err)
}

func humanizeParseError(sourceName string, err error) string {
	if err == nil {
		return sourceName + " 解析失败"
	}
	// 解析失败通常意味着站点结构漂移或被返回了非预期页面（例如登录页）。
	return fmt.Sprintf("%s 解析失败（站点结构可能变化或返回了非输入内容）：%v", sourceName, err)
}
