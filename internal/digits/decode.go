package digits

import "github.com/John-Robertt/segdecode/internal/domain"

// Decode 把 4 个输出 Pattern 按位组合为整数：d0*1000 + d1*100 + d2*10 + d3。
func Decode(m domain.DigitMapping, out [domain.OutputLen]domain.Pattern) (int, error) {
	v := 0
	for _, p := range out {
		d, ok := m.Digit(p)
		if !ok {
			return 0, &Error{Code: domain.ErrCodeUnknownPattern, Pattern: p, Detail: "输出 Pattern 不在字典中"}
		}
		v = v*10 + d
	}
	return v, nil
}

// DecodeEntry 是 Resolve + Decode 的组合。
func DecodeEntry(e domain.Entry) (int, error) {
	m, err := Resolve(e.Dict)
	if err != nil {
		return 0, err
	}
	return Decode(m, e.Output)
}
