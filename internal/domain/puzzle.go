package domain

import "fmt"

// PuzzleRef 定位一道远程谜题（年份 + 日）。
type PuzzleRef struct {
	Year int
	Day  int
}

// Valid 只做范围校验：Advent of Code 从 2015 年开始，每年 1–25 日。
func (r PuzzleRef) Valid() bool {
	return r.Year >= 2015 && r.Day >= 1 && r.Day <= 25
}

func (r PuzzleRef) String() string { return fmt.Sprintf("%d-%d", r.Year, r.Day) }
