package digits

import (
	"errors"
	"fmt"

	"github.com/John-Robertt/segdecode/internal/domain"
)

// Error 是解码阶段的结构化错误（带 error_code）。
//
// Code 取值：
// - domain.ErrCodeMalformedDictionary：字典长度分布不是 1/1/1/3/3/1
// - domain.ErrCodeAmbiguousPattern：长度 5/6 的 Pattern 无法归入任何签名，或两个 Pattern 争同一个数字
// - domain.ErrCodeUnknownPattern：输出 Pattern 不在已解析的字典中（输入本身合法时的内部一致性故障）
type Error struct {
	Code    string
	Pattern domain.Pattern
	Detail  string
}

func (e *Error) Error() string {
	if e.Pattern != 0 {
		return fmt.Sprintf("%s：%s（%s）", e.Code, e.Detail, e.Pattern)
	}
	return fmt.Sprintf("%s：%s", e.Code, e.Detail)
}

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// bucketWant 是每个长度应出现的次数（下标为长度）。
var bucketWant = [8]int{2: 1, 3: 1, 4: 1, 5: 3, 6: 3, 7: 1}

// Resolve 只依据长度与公共段数，把字典中的 10 个 Pattern 对应到数字 0–9。
//
// 不枚举 7! 种接线排列；返回的 DigitMapping 一定是双射。
func Resolve(dict []domain.Pattern) (domain.DigitMapping, error) {
	var m domain.DigitMapping

	// 去重后按长度分桶；重复 token 会让数量不足 10，从而落入 malformed_dictionary。
	var seen [128]bool
	var buckets [8][]domain.Pattern
	distinct := 0
	for _, p := range dict {
		if p == 0 || p >= 128 {
			return m, &Error{Code: domain.ErrCodeMalformedDictionary, Pattern: p, Detail: "字典包含非法 Pattern"}
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		distinct++
		buckets[p.Len()] = append(buckets[p.Len()], p)
	}
	if distinct != len(m) {
		return m, &Error{Code: domain.ErrCodeMalformedDictionary, Detail: fmt.Sprintf("期望 10 个不同的 Pattern，实际 %d 个", distinct)}
	}
	for n, want := range bucketWant {
		if len(buckets[n]) != want {
			return m, &Error{Code: domain.ErrCodeMalformedDictionary, Detail: fmt.Sprintf("长度 %d 的 Pattern 应有 %d 个，实际 %d 个", n, want, len(buckets[n]))}
		}
	}

	// 第一轮：长度唯一的锚点。
	m[1] = buckets[2][0]
	m[7] = buckets[3][0]
	m[4] = buckets[4][0]
	m[8] = buckets[7][0]
	four, seven := m[4], m[7]

	assign := func(d int, p domain.Pattern) error {
		if m[d] != 0 {
			return &Error{Code: domain.ErrCodeAmbiguousPattern, Pattern: p, Detail: fmt.Sprintf("数字 %d 已被 %s 占用", d, m[d])}
		}
		m[d] = p
		return nil
	}

	// 第二轮，长度 5：{2,3,5}。只有 2 与 4 共享 2 段；3 包含 7，5 不包含。
	for _, p := range buckets[5] {
		var d int
		switch shared4 := p.Shared(four); {
		case shared4 == 2:
			d = 2
		case shared4 == 3 && p.Contains(seven):
			d = 3
		case shared4 == 3:
			d = 5
		default:
			return domain.DigitMapping{}, &Error{Code: domain.ErrCodeAmbiguousPattern, Pattern: p, Detail: fmt.Sprintf("长度 5 与 4 的公共段数为 %d", shared4)}
		}
		if err := assign(d, p); err != nil {
			return domain.DigitMapping{}, err
		}
	}

	// 第二轮，长度 6：{0,6,9}。9 包含 4；其余两个中 0 包含 7。
	for _, p := range buckets[6] {
		d := 6
		if p.Contains(four) {
			d = 9
		} else if p.Contains(seven) {
			d = 0
		}
		if err := assign(d, p); err != nil {
			return domain.DigitMapping{}, err
		}
	}

	return m, nil
}
