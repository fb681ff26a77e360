package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// runLimiter keeps one token bucket per account for run creation.
type runLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newRunLimiter(perSecond float64, burst int) *runLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &runLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (rl *runLimiter) get(identity string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[identity]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[identity] = l
	}
	return l
}

// middleware must run after authMiddleware.
func (rl *runLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}
		account := currentAccount(c)
		if !rl.get(account.Identity).Allow() {
			retryAfter := int(math.Ceil(1 / float64(rl.limit)))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many runs, slow down"})
			return
		}
		c.Next()
	}
}
