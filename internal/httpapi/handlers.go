package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"dialout-picker/internal/audit"
	"dialout-picker/internal/auth"
	"dialout-picker/internal/dialing"
	"dialout-picker/internal/dispatch"
	"dialout-picker/internal/rbac"
	"dialout-picker/internal/session"
	"dialout-picker/internal/targets"
	"dialout-picker/internal/widget"
	"dialout-picker/pkg/logger"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the session layer, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Sessions   *session.Manager
	Conference string

	// Checks run on /healthz; a failing check reports 503.
	Checks map[string]func(ctx context.Context) error
}

// ClientIP stores the resolved client IP for audit events.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

func (h Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			logger.FromGin(c).Warn("health check failed", "check", name, "err", err)
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}

// --- Auth ---

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IssueToken issues a token pair for this conference.
//
// Only mounted in local/dev: the hosting platform issues real tokens.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || !validRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role (chair or guest) required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, h.Conference, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Role         string `json:"role"`
}

func (h Handlers) RefreshToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" || !validRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token and role required"})
		return
	}
	pair, err := h.Auth.Refresh(time.Now(), req.RefreshToken, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func validRole(r string) bool { return r == rbac.RoleChair || r == rbac.RoleGuest }

// --- Sessions ---

func (h Handlers) CreateSession(c *gin.Context) {
	s, err := h.Sessions.Create(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": s.ID(), "targets": s.Targets()})
}

func (h Handlers) CloseSession(c *gin.Context) {
	if err := h.Sessions.Close(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) SearchTargets(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	query := c.Query("q")
	found, err := s.Search(query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "count": len(found), "targets": found})
}

type selectionRequest struct {
	Action      string `json:"action"`
	Destination string `json:"destination"`
}

func (h Handlers) UpdateSelection(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var err error
	switch req.Action {
	case "toggle":
		if strings.TrimSpace(req.Destination) == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "destination required"})
			return
		}
		_, err = s.Toggle(req.Destination)
	case "select_all":
		_, err = s.SelectAllFiltered()
	case "clear":
		err = s.ClearSelection()
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "action must be toggle, select_all or clear"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected": s.Selected()})
}

func (h Handlers) View(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, widget.Project(s.Snapshot()))
}

func (h Handlers) Widget(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	templ.Handler(widget.Render(widget.Project(s.Snapshot()))).ServeHTTP(c.Writer, c.Request)
}

// --- Dialing ---

type dialRequest struct {
	// Destinations overrides the session selection when set.
	Destinations []string `json:"destinations"`
	dialing.Overrides
}

type dialResponse struct {
	BatchID  string             `json:"batch_id"`
	Outcomes []dispatch.Outcome `json:"outcomes"`
	Tally    dispatch.Tally     `json:"tally"`
	Summary  string             `json:"summary"`
}

// Dial runs one batch. Clients that accept text/event-stream get an
// "outcome" event per destination and a final "summary" event; others get
// the whole result as JSON once the batch is done.
func (h Handlers) Dial(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	dests := req.Destinations
	if len(dests) == 0 {
		dests = s.Selected()
	}

	stream := wantsEventStream(c)
	var emit func(dispatch.Progress)
	if stream {
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		emit = func(p dispatch.Progress) {
			c.SSEvent("outcome", p)
			c.Writer.Flush()
		}
	}

	sum, err := s.Dial(c.Request.Context(), dests, req.Overrides, emit)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := dialResponse{
		BatchID:  sum.BatchID,
		Outcomes: sum.Outcomes,
		Tally:    sum.Tally,
		Summary:  widget.Project(s.Snapshot()).Summary,
	}
	if stream {
		c.SSEvent("summary", resp)
		c.Writer.Flush()
		return
	}
	c.JSON(http.StatusOK, resp)
}

type dialOneRequest struct {
	Destination string `json:"destination"`
	dialing.Overrides
}

func (h Handlers) DialOne(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req dialOneRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Destination) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "destination required"})
		return
	}
	toast, err := s.DialOne(c.Request.Context(), req.Destination, req.Overrides)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toast)
}

// Protocols lists the selectable protocol overrides.
func (h Handlers) Protocols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"protocols": []targets.Protocol{targets.ProtocolAuto, targets.ProtocolSIP, targets.ProtocolH323, targets.ProtocolMSSIP, targets.ProtocolRTMP},
		"roles":     []targets.Role{targets.RoleGuest, targets.RoleHost},
	})
}

func (h Handlers) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return s, true
}

func (h Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrBusy):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrUnknownTarget):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrTooMany):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func wantsEventStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}
