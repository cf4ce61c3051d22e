package signal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/segdecode/internal/domain"
)

const (
	minTokenLen = 2
	maxTokenLen = 7
)

// Error 是行解析阶段的结构化错误。
//
// Code 取值：domain.ErrCodeInvalidToken / domain.ErrCodeMalformedLine。
// 两者都只中止当前行，不影响其它行。
type Error struct {
	Code   string
	Token  string // 仅 invalid_token 时非空
	Reason string
}

func (e *Error) Error() string {
	switch e.Code {
	case domain.ErrCodeInvalidToken:
		return fmt.Sprintf("非法 token %q：%s", e.Token, e.Reason)
	case domain.ErrCodeMalformedLine:
		return "行格式错误：" + e.Reason
	default:
		return e.Reason
	}
}

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Normalize 把 token 规范化为与字符顺序无关的 Pattern。
// 例如 "acedgfb" 与 "cagedbf" 得到同一个值。
func Normalize(token string) (domain.Pattern, error) {
	if n := len(token); n < minTokenLen || n > maxTokenLen {
		return 0, &Error{Code: domain.ErrCodeInvalidToken, Token: token, Reason: fmt.Sprintf("长度必须在 %d–%d 之间，实际 %d", minTokenLen, maxTokenLen, n)}
	}

	var p domain.Pattern
	for i := 0; i < len(token); i++ {
		bit := domain.Bit(token[i])
		if bit == 0 {
			return 0, &Error{Code: domain.ErrCodeInvalidToken, Token: token, Reason: fmt.Sprintf("字符 %q 不是段标签 a–g", token[i])}
		}
		if p&bit != 0 {
			return 0, &Error{Code: domain.ErrCodeInvalidToken, Token: token, Reason: fmt.Sprintf("字符 %q 重复", token[i])}
		}
		p |= bit
	}
	return p, nil
}

// ParseLine 把一行 "<字典> | <4 个输出>" 解析为 Entry。
//
// 字典 token 数量在这里不做校验（交给 digits.Resolve 报 malformed_dictionary），
// 但输出必须恰好 4 个。
func ParseLine(ln domain.Line) (domain.Entry, error) {
	if ln.Truncated {
		return domain.Entry{}, &Error{Code: domain.ErrCodeMalformedLine, Reason: "行过长，已被截断"}
	}
	dictPart, outPart, ok := strings.Cut(ln.Text, "|")
	if !ok {
		return domain.Entry{}, &Error{Code: domain.ErrCodeMalformedLine, Reason: "缺少分隔符 '|'"}
	}
	if strings.Contains(outPart, "|") {
		return domain.Entry{}, &Error{Code: domain.ErrCodeMalformedLine, Reason: "分隔符 '|' 出现多次"}
	}

	outTokens := strings.Fields(outPart)
	if len(outTokens) != domain.OutputLen {
		return domain.Entry{}, &Error{Code: domain.ErrCodeMalformedLine, Reason: fmt.Sprintf("输出必须是 %d 个 token，实际 %d", domain.OutputLen, len(outTokens))}
	}

	e := domain.Entry{File: ln.File, Line: ln.No}

	dictTokens := strings.Fields(dictPart)
	e.Dict = make([]domain.Pattern, 0, len(dictTokens))
	for _, tok := range dictTokens {
		p, err := Normalize(tok)
		if err != nil {
			return domain.Entry{}, err
		}
		e.Dict = append(e.Dict, p)
	}

	for i, tok := range outTokens {
		p, err := Normalize(tok)
		if err != nil {
			return domain.Entry{}, err
		}
		e.Output[i] = p
	}
	return e, nil
}
