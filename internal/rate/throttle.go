package rate

import (
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ravikovind/griha-homes/internal/metrics"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Window is one named fixed window checked per client IP. A request must
// fit every window or it is rejected.
type Window struct {
	Name    string
	Limiter Limiter
}

type Throttle struct {
	Windows []Window
	Logger  *slog.Logger
	Clock   Clock
}

func NewThrottle(windows []Window, logger *slog.Logger) *Throttle {
	return &Throttle{Windows: windows, Logger: logger, Clock: systemClock{}}
}

func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := t.Clock.Now()

		for _, w := range t.Windows {
			allowed, retryAfter, err := w.Limiter.Allow(c.Request.Context(), ip+":"+w.Name, now)
			if err != nil {
				// A broken limiter backend must not take the API down.
				t.Logger.Error("rate limiter failed", "window", w.Name, "error", err)
				continue
			}
			if !allowed {
				metrics.ThrottleRejections.WithLabelValues(w.Name).Inc()
				seconds := int(retryAfter/time.Second) + 1
				c.Header("Retry-After", strconv.Itoa(seconds))
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
				})
				return
			}
		}

		c.Next()
	}
}
