package domain

import (
	"math/bits"
	"strings"
)

// Segments 是合法的段线标签（按位序）：'a' 对应 bit0，'g' 对应 bit6。
const Segments = "abcdefg"

// Pattern 是一组段线标签的规范形态：7 位集合，与输入字符顺序无关。
//
// 约束：零值表示空集合，不是合法 Pattern；合法值由 signal.Normalize 产生（2–7 个标签）。
type Pattern uint8

// Bit 返回标签 c 对应的位；c 不在 a..g 范围内时返回 0。
func Bit(c byte) Pattern {
	if c < 'a' || c > 'g' {
		return 0
	}
	return Pattern(1) << (c - 'a')
}

// Len 是集合大小（即点亮的段数）。
func (p Pattern) Len() int { return bits.OnesCount8(uint8(p)) }

// Shared 返回 |p ∩ o|。
func (p Pattern) Shared(o Pattern) int { return bits.OnesCount8(uint8(p & o)) }

// Contains 判断 p ⊇ o。
func (p Pattern) Contains(o Pattern) bool { return p&o == o }

// String 按字母序输出标签，例如 "abdeg"。
func (p Pattern) String() string {
	var b strings.Builder
	b.Grow(7)
	for i := 0; i < len(Segments); i++ {
		if p&(1<<i) != 0 {
			b.WriteByte(Segments[i])
		}
	}
	return b.String()
}

// UniqueDigit 报告仅凭长度即可确定的数字（长度 2/3/4/7 → 1/7/4/8）。
func (p Pattern) UniqueDigit() (int, bool) {
	switch p.Len() {
	case 2:
		return 1, true
	case 3:
		return 7, true
	case 4:
		return 4, true
	case 7:
		return 8, true
	default:
		return 0, false
	}
}
