package security

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"latepass-system/utils"
)

// ScanGuard throttles and authenticates the redemption endpoint. Scanner
// devices are shared kiosks presenting a deployment-wide key; the key is
// stored as a bcrypt hash so a leaked config file does not leak the key.
type ScanGuard struct {
	redis          *redis.Client
	scannerKeyHash string
	limit          int
	window         time.Duration
}

func NewScanGuard(redisClient *redis.Client, scannerKeyHash string, limit int, window time.Duration) *ScanGuard {
	return &ScanGuard{
		redis:          redisClient,
		scannerKeyHash: scannerKeyHash,
		limit:          limit,
		window:         window,
	}
}

// RequireScannerKey checks the X-Scanner-Key header against the configured
// bcrypt hash. With no hash configured (development), the check is skipped.
func (g *ScanGuard) RequireScannerKey(e *core.RequestEvent) error {
	if g.scannerKeyHash == "" {
		return e.Next()
	}

	key := e.Request.Header.Get("X-Scanner-Key")
	if key == "" {
		return apis.NewUnauthorizedError("Scanner key required", nil)
	}
	if !utils.CompareKeyHash([]byte(g.scannerKeyHash), []byte(key)) {
		return apis.NewForbiddenError("Invalid scanner key", nil)
	}

	return e.Next()
}

// RateLimitScans caps redemption attempts per client IP inside a rolling
// window, backed by Redis INCR + EXPIRE.
func (g *ScanGuard) RateLimitScans(e *core.RequestEvent) error {
	ip := e.RealIP()
	key := fmt.Sprintf("latepass:scan_rate:%s", ip)
	ctx := e.Request.Context()

	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		// Redis being down must not block scanning.
		return e.Next()
	}
	if count == 1 {
		g.redis.Expire(ctx, key, g.window)
	}

	if count > int64(g.limit) {
		return e.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Too many scan attempts. Please try again later.",
		})
	}

	return e.Next()
}
