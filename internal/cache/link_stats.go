package cache

import (
	"context"
	"fmt"
	"time"
)

const linkStatsCacheTTL = 5 * time.Minute

// LinkStats 链接聚合统计快照
// 仅用于后台列表页的计数展示，任何链接写操作后必须失效。
type LinkStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Inactive  int64 `json:"inactive"`
	Expired   int64 `json:"expired"`
	UpdatedAt int64 `json:"updated_at"`
}

func linkStatsKey() string {
	return "links:stats"
}

// GetLinkStats 获取链接统计快照
func GetLinkStats(ctx context.Context) (*LinkStats, bool, error) {
	var stats LinkStats
	hit, err := GetJSON(ctx, linkStatsKey(), &stats)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &stats, true, nil
}

// SetLinkStats 写入链接统计快照
func SetLinkStats(ctx context.Context, stats *LinkStats) error {
	if stats == nil {
		return nil
	}
	stats.UpdatedAt = time.Now().Unix()
	return SetJSON(ctx, linkStatsKey(), stats, linkStatsCacheTTL)
}

// DelLinkStats 失效链接统计快照
func DelLinkStats(ctx context.Context) error {
	return Del(ctx, linkStatsKey())
}

// MarkSecurityAlertSent 标记某 IP 的锁定告警已发送，窗口内只告警一次
func MarkSecurityAlertSent(ctx context.Context, ip string, window time.Duration) (bool, error) {
	return SetNX(ctx, fmt.Sprintf("security:alerted:%s", ip), window)
}
