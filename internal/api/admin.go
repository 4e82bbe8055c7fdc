package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	infrajwt "github.com/jonesrussell/setlist/infrastructure/jwt"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/auth"
	"github.com/jonesrussell/setlist/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type bulkRequest struct {
	Action string  `json:"action"`
	Limit  float64 `json:"limit"`
}

type reorderRequest struct {
	ItemID   *float64 `json:"itemId"`
	BeforeID *float64 `json:"beforeId"`
}

type controlRequest struct {
	Action string `json:"action"`
}

// Login handles POST /admin/login.
func (h *Handler) Login(c *gin.Context) {
	if !h.adminEnabled() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgAdminDisabled})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}

	token, expires, err := h.auth.Login(strings.TrimSpace(req.Username), strings.TrimSpace(req.Password))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Warn("Admin login rejected", infralogger.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.respondError(c, err, "admin login", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"username":  strings.TrimSpace(req.Username),
		"tokenType": "Bearer",
		"token":     token,
		"expiresAt": expires,
	})
}

// Session handles GET /admin/session.
func (h *Handler) Session(c *gin.Context) {
	claims, ok := infrajwt.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgAdminRequired})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "username": claims.Sub})
}

// ListQueue handles GET /admin/queue. With active=1 it lists only active
// entries in set order.
func (h *Handler) ListQueue(c *gin.Context) {
	filter := service.AdminFilter{
		Status:      c.Query("status"),
		Confidence:  c.Query("confidence"),
		DanceMoment: c.Query("danceMoment"),
		Query:       c.Query("q"),
	}

	list := h.queue.ListAdmin
	if activeOnly, _ := strconv.ParseBool(c.Query("active")); activeOnly {
		list = h.queue.ListActive
	}

	entries, err := list(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "list admin queue", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": newEntryResponses(entries)})
}

// UpdateEntry handles PATCH /admin/queue/:id.
func (h *Handler) UpdateEntry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid queue item id"})
		return
	}

	var body map[string]json.RawMessage
	if bindErr := c.ShouldBindJSON(&body); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}

	entry, err := h.queue.AdminUpdate(c.Request.Context(), id, decodePatch(body))
	if err != nil {
		h.respondError(c, err, "admin update", "")
		return
	}

	c.JSON(http.StatusOK, newEntryResponse(entry))
}

// Bulk handles POST /admin/bulk.
func (h *Handler) Bulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}

	result, err := h.queue.Bulk(c.Request.Context(), req.Action, int(req.Limit))
	if err != nil {
		h.respondError(c, err, "bulk action", "Unsupported bulk action")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Reorder handles POST /admin/reorder.
func (h *Handler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}

	itemID, ok := positiveID(req.ItemID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item id"})
		return
	}

	var beforeID *int64
	if req.BeforeID != nil {
		id, valid := positiveID(req.BeforeID)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid before id"})
			return
		}
		beforeID = &id
	}

	if err := h.queue.Reorder(c.Request.Context(), itemID, beforeID); err != nil {
		h.respondError(c, err, "reorder", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Control handles POST /admin/control.
func (h *Handler) Control(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidJSON})
		return
	}

	result, err := h.queue.Control(c.Request.Context(), req.Action)
	if err != nil {
		h.respondError(c, err, "control action", "Unsupported control action")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Analytics handles GET /admin/analytics.
func (h *Handler) Analytics(c *gin.Context) {
	analytics, err := h.queue.Analytics(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "analytics", "")
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// decodePatch keeps key presence: a field sent as null is still an update.
func decodePatch(body map[string]json.RawMessage) service.AdminPatch {
	var patch service.AdminPatch

	str := func(key string) *string {
		raw, ok := body[key]
		if !ok {
			return nil
		}
		s := rawString(raw)
		return &s
	}
	num := func(key string) *float64 {
		raw, ok := body[key]
		if !ok {
			return nil
		}
		n := rawNumber(raw)
		return &n
	}

	patch.Status = str("status")
	patch.ReviewNote = str("reviewNote")
	patch.ModerationReason = str("moderationReason")
	patch.DanceMoment = str("danceMoment")
	patch.DJNotes = str("djNotes")
	patch.EnergyLevel = num("energyLevel")

	if raw, ok := body["setOrder"]; ok {
		patch.SetOrderSet = true
		if !isNull(raw) {
			n := rawNumber(raw)
			patch.SetOrder = &n
		}
	}

	return patch
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// rawNumber accepts numbers and numeric strings. Anything else is NaN,
// which every consumer treats as invalid or default.
func rawNumber(raw json.RawMessage) float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(s), 64); parseErr == nil {
			return parsed
		}
	}
	return math.NaN()
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func positiveID(v *float64) (int64, bool) {
	if v == nil || *v != math.Trunc(*v) || *v <= 0 || *v > math.MaxInt64 {
		return 0, false
	}
	return int64(*v), true
}
