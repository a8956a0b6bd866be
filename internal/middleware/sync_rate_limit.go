package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 同步限流中间件 ====================

// cooldownLimiter 按 key 记录上次执行时间的冷却限流器
type cooldownLimiter struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var limiter = &cooldownLimiter{last: make(map[string]time.Time)}

// check 未过冷却期时返回剩余等待时间
func (l *cooldownLimiter) check(key string, interval time.Duration) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if last, ok := l.last[key]; ok {
		if wait := interval - now.Sub(last); wait > 0 {
			return false, wait
		}
	}
	l.last[key] = now
	return true, 0
}

// SyncRateLimit 同步冷却限流
// 目录同步整轮可能要跑几分钟，给管理端的手动触发加冷却期，
// 防止两轮同步并发交错执行
//
// 使用示例:
//
//	catalog.POST("/refresh",
//	    middleware.SyncRateLimit("catalog_refresh", 5*time.Minute),
//	    syncCtl.RefreshCatalog,
//	)
func SyncRateLimit(key string, interval time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, wait := limiter.check(key, interval)
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(wait),
				"data": gin.H{
					"retry_after": int(wait.Seconds()),
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())

	if seconds < 60 {
		return fmt.Sprintf("同步冷却中，请 %d 秒后重试", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return fmt.Sprintf("同步冷却中，请 %d 分钟后重试", minutes)
	}

	return fmt.Sprintf("同步冷却中，请 %d 分 %d 秒后重试", minutes, remainingSeconds)
}
