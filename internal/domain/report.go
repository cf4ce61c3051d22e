package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusDecoded = "decoded"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

const (
	ErrCodeInvalidToken        = "invalid_token"
	ErrCodeMalformedLine       = "malformed_line"
	ErrCodeMalformedDictionary = "malformed_dictionary"
	ErrCodeAmbiguousPattern    = "ambiguous_pattern"
	ErrCodeUnknownPattern      = "unknown_pattern"

	ErrCodeIOFailed      = "io_failed"
	ErrCodeFetchFailed   = "fetch_failed"
	ErrCodeParseFailed   = "parse_failed"
	ErrCodeCancelled     = "cancelled"
	ErrCodeConfigInvalid = "config_invalid"
)

// Tally 是 (unique_count, total_value) 累加对。
// Merge 满足交换律与结合律：记录可以任意顺序、任意分片汇总。
type Tally struct {
	UniqueCount int `json:"unique_count"`
	TotalValue  int `json:"total_value"`
}

func (t Tally) Merge(o Tally) Tally {
	return Tally{
		UniqueCount: t.UniqueCount + o.UniqueCount,
		TotalValue:  t.TotalValue + o.TotalValue,
	}
}

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Source string `json:"source"`
	Input  string `json:"input"`
	Saved  bool   `json:"saved"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []EntryResult `json:"items"`
}

type ReportSummary struct {
	Entries int `json:"entries"`
	Decoded int `json:"decoded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	Tally
}

// EntryResult 是单行输入的处理结果。
//
// - decoded：Value 有效，Unique 有效
// - skipped：Value=0；Unique 仍按输出长度计数（行解析失败时为 0）
// - failed：运行级合成条目（File=="" 且 Line==0），不对应任何输入行
type EntryResult struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Status string `json:"status"`
	Value  int    `json:"value"`
	Unique int    `json:"unique"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Tally 返回该条目对累加对的贡献。
func (r EntryResult) Tally() Tally {
	t := Tally{UniqueCount: r.Unique}
	if r.Status == StatusDecoded {
		t.TotalValue = r.Value
	}
	return t
}

func (r EntryResult) synthetic() bool { return r.File == "" && r.Line == 0 }

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：按 (file, line)；合成条目排在最后
// 3) summary 由 items 计算得出（与并发调度顺序无关）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.synthetic() || b.synthetic() {
			return !a.synthetic() && b.synthetic()
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusDecoded:
			s.Decoded++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
		s.Tally = s.Tally.Merge(it.Tally())
	}
	s.Entries = s.Decoded + s.Skipped
	r.Summary = s
}

// MarshalJSON 集中约束输出的稳定性：nil items 输出为 []。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	if r.Items == nil {
		r.Items = []EntryResult{}
	}
	return json.Marshal(Alias(r))
}
