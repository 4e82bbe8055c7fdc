// Package api exposes the queue over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/jonesrussell/setlist/internal/intake"
	"github.com/jonesrussell/setlist/internal/ratelimit"
	"github.com/jonesrussell/setlist/internal/service"
)

const (
	msgInvalidJSON     = "Invalid JSON payload"
	msgNotFound        = "Queue item not found"
	msgInternal        = "Internal server error"
	msgAdminDisabled   = "Admin credentials are not configured."
	msgAdminRequired   = "Admin authorization required"
	maxForwardedHeader = 200
	maxIdentityLen     = 80
)

// QueueService is the queue behavior the handlers expose.
type QueueService interface {
	Submit(ctx context.Context, payload intake.Payload, identity string) (*service.SubmitResult, error)
	AdminUpdate(ctx context.Context, id int64, patch service.AdminPatch) (*domain.Entry, error)
	Bulk(ctx context.Context, action string, limit int) (*service.BulkResult, error)
	Reorder(ctx context.Context, itemID int64, beforeID *int64) error
	Control(ctx context.Context, action string) (*service.ControlResult, error)
	ListAdmin(ctx context.Context, f service.AdminFilter) ([]*domain.Entry, error)
	ListActive(ctx context.Context, f service.AdminFilter) ([]*domain.Entry, error)
	PublicQueue(ctx context.Context, status string, limit int) ([]*domain.Entry, error)
	Feed(ctx context.Context) (*service.Feed, error)
	Analytics(ctx context.Context) (*service.Analytics, error)
}

// Authenticator checks the admin credentials and issues tokens.
type Authenticator interface {
	Login(username, password string) (string, time.Time, error)
}

// Handler serves the public and admin endpoints.
type Handler struct {
	queue  QueueService
	auth   Authenticator
	logger infralogger.Logger
}

// NewHandler creates a Handler. A nil auth disables admin login.
func NewHandler(queue QueueService, auth Authenticator, log infralogger.Logger) *Handler {
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Handler{queue: queue, auth: auth, logger: log}
}

// adminEnabled reports whether an admin account is configured.
func (h *Handler) adminEnabled() bool {
	return h.auth != nil
}

// respondError maps service errors onto status codes. unsupported is the
// message shown for ErrUnsupportedAction.
func (h *Handler) respondError(c *gin.Context, err error, op, unsupported string) {
	var validation *domain.ValidationError
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
	case errors.As(err, &conflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": conflict.Message})
	case errors.Is(err, domain.ErrConflictingState):
		c.JSON(http.StatusConflict, gin.H{"error": "The queue changed, try again"})
	case errors.Is(err, domain.ErrUnsupportedAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": unsupported})
	default:
		infralogger.FromContext(c.Request.Context()).Error("Request failed",
			infralogger.String("operation", op),
			infralogger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
	}
}

// ClientIdentity resolves the rate-limit identity of the caller:
// CF-Connecting-IP, then the first X-Forwarded-For hop, then the peer address.
func ClientIdentity(c *gin.Context) string {
	if ip := domain.Sanitize(c.GetHeader("CF-Connecting-IP"), maxIdentityLen); ip != "" {
		return ip
	}
	if forwarded := domain.Sanitize(c.GetHeader("X-Forwarded-For"), maxForwardedHeader); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := domain.Sanitize(first, maxIdentityLen); ip != "" {
			return ip
		}
	}
	if ip := domain.Sanitize(c.ClientIP(), maxIdentityLen); ip != "" {
		return ip
	}
	return ratelimit.UnknownIdentity
}
