package exif

import (
	"strings"
	"time"
)

// canonicalLayout 是引擎对外唯一的时间形态：YYYYMMDD_HHMMSS。
const canonicalLayout = "20060102_150405"

// sentinelZero 是相机固件常见的“无时间”哨兵值。
const sentinelZero = "0000:00:00 00:00:00"

// layouts 是归一化接受的格式（按顺序尝试，首个命中生效）：
// 三种主分隔符 + ISO 8601（带/不带 Z）+ 三种无秒变体。
// time.Parse 允许输入在秒后携带小数部分（即便 layout 未声明），
// 因此带毫秒/微秒的变体无需单独列出。
var layouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006:01:02 15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
}

// Normalize 把异构的 EXIF 时间字符串规整为 canonical 形态。
//
// 契约：
// - 输入先 trim；空串或全零哨兵值 => ok=false
// - 时间字段按墙上时钟原样保留，不做任何时区换算
// - 无秒的格式秒位补 00
// - 该函数不做 I/O，除了返回 ok=false 之外没有失败路径
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || s == sentinelZero {
		return "", false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(canonicalLayout), true
		}
	}
	return "", false
}
