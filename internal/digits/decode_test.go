package digits

import (
	"testing"

	"github.com/John-Robertt/segdecode/internal/domain"
)

func TestDecodeEntry_Example(t *testing.T) {
	got, err := DecodeEntry(mustEntry(t, exampleLine))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got != 5353 {
		t.Fatalf("期望 5353，实际 %d", got)
	}
}

func TestDecodeEntry_LargerExample(t *testing.T) {
	cases := []struct {
		line string
		want int
	}{
		{"be cfbegad cbdgef fgaecd cgeb fdcge agebfd fecdb fabcd edb | fdgacbe cefdb cefbgd gcbe", 8394},
		{"edbfga begcd cbg gc gcadebf fbgde acbgfd abcde gfcbed gfec | fcgedb cgb dgebacf gc", 9781},
		{"fgaebd cg bdaec gdafb agbcfd gdcbef bgcad gfac gcb cdgabef | cg cg fdcagb cbg", 1197},
		{"fbegcd cbd adcefb dageb afcb bc aefdc ecdab fgdeca fcdbega | efabcd cedba gadfec cb", 9361},
		{"aecbfdg fbg gf bafeg dbefa fcge gcbea fcaegb dgceab fcbdga | gecf egdcabf bgf bfgea", 4873},
		{"fgeab ca afcebg bdacfeg cfaedg gcfdb baec bfadeg bafgc acf | gebdcfa ecba ca fadegcb", 8418},
		{"dbcfg fgd bdegcaf fgec aegbdf ecdfab fbedc dacgb gdcebf gf | cefg dcbef fcge gbcadfe", 4548},
		{"bdfegc cbegaf gecbf dfcage bdacg ed bedf ced adcbefg gebcd | ed bcgafe cdgba cbgef", 1625},
		{"egadfb cdbfeg cegd fecab cgb gbdefca cg fgcdab egfdb bfceg | gbdfcae bgc cg cgb", 8717},
		{"gcafb gcf dcaebfg ecagb gf abcdeg gaef cafbge fdbac fegbdc | fgae cfgab fg bagce", 4315},
	}
	for _, tc := range cases {
		got, err := DecodeEntry(mustEntry(t, tc.line))
		if err != nil {
			t.Fatalf("%q 不期望错误：%v", tc.line, err)
		}
		if got != tc.want {
			t.Fatalf("%q 期望 %d，实际 %d", tc.line, tc.want, got)
		}
	}
}

func TestDecode_LeadingZero(t *testing.T) {
	m, err := Resolve(canonicalDict(t))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	out := [domain.OutputLen]domain.Pattern{m[0], m[0], m[4], m[2]}
	got, err := Decode(m, out)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got != 42 {
		t.Fatalf("期望 42（前导 0），实际 %d", got)
	}
}

func TestDecode_UnknownPattern(t *testing.T) {
	m, err := Resolve(canonicalDict(t))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// abcde 长度 5，但不在标准字典中。
	out := [domain.OutputLen]domain.Pattern{m[1], mustPattern(t, "abcde"), m[3], m[4]}
	_, err = Decode(m, out)
	if Code(err) != domain.ErrCodeUnknownPattern {
		t.Fatalf("期望 unknown_pattern，实际 err=%v", err)
	}
}

func TestDecodeEntry_PropagatesResolveError(t *testing.T) {
	e := mustEntry(t, "ab ab dab eafb cdfbe gcdfa fbcad cefabd cdfgeb acedgfb | ab dab eafb acedgfb")
	_, err := DecodeEntry(e)
	if Code(err) != domain.ErrCodeMalformedDictionary {
		t.Fatalf("期望 malformed_dictionary，实际 err=%v", err)
	}
	// 解码失败不影响按长度计数。
	if e.UniqueCount() != 4 {
		t.Fatalf("期望 unique=4，实际 %d", e.UniqueCount())
	}
}
