package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/intake"
	"github.com/jonesrussell/setlist/internal/ratelimit"
	"golang.org/x/time/rate"
)

// SubmitRequest handles POST /requests.
func (h *Handler) SubmitRequest(c *gin.Context) {
	var payload intake.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}

	result, err := h.queue.Submit(c.Request.Context(), payload, ClientIdentity(c))
	if err != nil {
		h.respondError(c, err, "submit request", "")
		return
	}

	if result.Refused() {
		c.Header("Retry-After", strconv.Itoa(result.RateLimit.RetryAfterSeconds))
		c.JSON(http.StatusTooManyRequests, RateLimitedResponse{
			Error:         ratelimit.RefusedMessage,
			RetryAfterSec: result.RateLimit.RetryAfterSeconds,
			NextAllowedAt: result.RateLimit.NextAllowedAt,
		})
		return
	}

	status := http.StatusCreated
	if result.DuplicateJoined {
		status = http.StatusOK
	}

	c.JSON(status, SubmitResponse{
		EntryResponse:   newEntryResponse(result.Entry),
		DuplicateJoined: result.DuplicateJoined,
		RetryAfterSec:   result.RateLimit.RetryAfterSeconds,
		NextAllowedAt:   result.RateLimit.NextAllowedAt,
	})
}

// PublicQueue handles GET /queue.
func (h *Handler) PublicQueue(c *gin.Context) {
	// Unparseable limits fall back to the default.
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.queue.PublicQueue(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		h.respondError(c, err, "public queue", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": newPublicEntryResponses(entries)})
}

// Feed handles GET /feed.
func (h *Handler) Feed(c *gin.Context) {
	feed, err := h.queue.Feed(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "public feed", "")
		return
	}

	c.JSON(http.StatusOK, newFeedResponse(feed))
}

// SubmitThrottle caps the total submission rate across all callers so a
// flood of distinct identities cannot saturate moderation lookups.
func SubmitThrottle(rps float64, burst int, log infralogger.Logger) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if limiter.Allow() {
			c.Next()
			return
		}

		log.Warn("Submission throttled",
			infralogger.String("client_ip", c.ClientIP()),
		)
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many song requests right now, try again shortly."})
	}
}
