package domain

// OutputLen 是每条记录输出段的固定长度（4 位数字）。
const OutputLen = 4

// Line 描述一次扫描得到的非空输入行。
//
// 不变量：No 从 1 开始，指向原文件中的行号（空行也计数）。
type Line struct {
	File string // 相对输入根的文件名；stdin 为 "stdin"，远程输入为 "<source>/<year>-<day>"
	No   int
	Text string

	// Truncated 表示原始行超过扫描上限，Text 只是前缀。
	Truncated bool
}

// Entry 是一条显示器记录：字典 + 4 个输出。
//
// Dict 保留原始数量（可能不是 10 个）：基数校验属于 digits.Resolve 的职责。
type Entry struct {
	File   string
	Line   int
	Dict   []Pattern
	Output [OutputLen]Pattern
}

// UniqueCount 统计输出中长度可唯一确定数字的 Pattern 个数。
// 只看长度，不依赖解码是否成功。
func (e Entry) UniqueCount() int {
	n := 0
	for _, p := range e.Output {
		if _, ok := p.UniqueDigit(); ok {
			n++
		}
	}
	return n
}

// DigitMapping 是单条记录内 数字 -> Pattern 的双射（下标即数字）。
// 只在一条记录内有效，不跨记录复用。
type DigitMapping [10]Pattern

// Digit 反查 Pattern 对应的数字。
func (m DigitMapping) Digit(p Pattern) (int, bool) {
	if p == 0 {
		return 0, false
	}
	for d, q := range m {
		if q == p {
			return d, true
		}
	}
	return 0, false
}
