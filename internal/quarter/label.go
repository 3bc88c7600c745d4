package quarter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// labelPattern は "Q1 2024" 形式の四半期ラベル。
var labelPattern = regexp.MustCompile(`^Q([1-4]) (\d{4})$`)

// ParseLabel は四半期ラベルから期間の開始日と終了日（いずれもUTCの0時）を返す。
// "Q1 2024" は2024-01-01から2024-03-31となる。
// 形式に一致しないラベルはエラーとする。
func ParseLabel(label string) (start, end time.Time, err error) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid quarter label %q", label)
	}
	q, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])

	start = time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	// 翌四半期の初日の前日
	end = start.AddDate(0, 3, -1)
	return start, end, nil
}

// NormalizeLabel は前後の空白を除去し、"q1 2024" のような小文字のQを大文字に揃える。
// 連続する空白は1つにまとめる。
func NormalizeLabel(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}
	fields[0] = strings.ToUpper(fields[0])
	return strings.Join(fields, " ")
}
