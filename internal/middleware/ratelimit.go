package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"civicvote/api/internal/config"
)

// LoginRateLimit caps authentication attempts per client IP over a
// sliding window backed by redis. Credential endpoints are the only
// place this applies; everything else is bounded by auth itself.
func LoginRateLimit(cfg *config.AppConfig, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("login:%s", c.ClientIP())

		count, err := redisClient.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// Redis being down must not lock everyone out.
			c.Next()
			return
		}
		if count == 1 {
			redisClient.Expire(c.Request.Context(), key, cfg.Security.LoginWindow)
		}

		if count > int64(cfg.Security.LoginMaxAttempts) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too_many_attempts"})
			return
		}

		c.Next()
	}
}
