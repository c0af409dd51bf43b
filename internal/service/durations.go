package service

import (
	"strconv"
	"strings"
	"time"
)

// customDurationPrefix 自定义过期时间前缀
const customDurationPrefix = "custom_"

// customDateLayout 自定义过期时间格式
const customDateLayout = "2006-01-02 15:04:05"

// durationPresets 预设有效期（月按30天、年按365天计）
var durationPresets = map[string]time.Duration{
	"1 hour":   time.Hour,
	"3 hours":  3 * time.Hour,
	"6 hours":  6 * time.Hour,
	"12 hours": 12 * time.Hour,
	"1 day":    24 * time.Hour,
	"3 days":   3 * 24 * time.Hour,
	"7 days":   7 * 24 * time.Hour,
	"14 days":  14 * 24 * time.Hour,
	"1 month":  30 * 24 * time.Hour,
	"3 months": 90 * 24 * time.Hour,
	"6 months": 180 * 24 * time.Hour,
	"1 year":   365 * 24 * time.Hour,
}

// relativeUnits 自由形式相对时间的单位表
var relativeUnits = map[string]time.Duration{
	"minute":  time.Minute,
	"minutes": time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
	"month":   30 * 24 * time.Hour,
	"months":  30 * 24 * time.Hour,
	"year":    365 * 24 * time.Hour,
	"years":   365 * 24 * time.Hour,
}

// DurationPresets 返回全部预设有效期标识（用于后台下拉）
func DurationPresets() []string {
	return []string{
		"1 hour", "3 hours", "6 hours", "12 hours",
		"1 day", "3 days", "7 days", "14 days",
		"1 month", "3 months", "6 months", "1 year",
	}
}

// ResolveExpiry 将有效期描述解析为绝对过期时间
// 支持三种形式：预设值（"7 days" 等12种）、custom_ 前缀的精确
// 时间（必须晚于当前时间）、"N 单位" 的相对表达。纯函数，无副作用。
func ResolveExpiry(spec string, now time.Time) (time.Time, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return time.Time{}, ErrInvalidDuration
	}

	if offset, ok := durationPresets[spec]; ok {
		return now.Add(offset), nil
	}

	if strings.HasPrefix(spec, customDurationPrefix) {
		raw := strings.TrimPrefix(spec, customDurationPrefix)
		at, err := time.ParseInLocation(customDateLayout, raw, now.Location())
		if err != nil {
			return time.Time{}, ErrInvalidDuration
		}
		if !at.After(now) {
			return time.Time{}, ErrPastDate
		}
		return at, nil
	}

	// 自由形式："N 单位"，如 "45 minutes"、"2 weeks"
	fields := strings.Fields(strings.ToLower(spec))
	if len(fields) != 2 {
		return time.Time{}, ErrInvalidDuration
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count <= 0 {
		return time.Time{}, ErrInvalidDuration
	}
	unit, ok := relativeUnits[fields[1]]
	if !ok {
		return time.Time{}, ErrInvalidDuration
	}
	return now.Add(time.Duration(count) * unit), nil
}
