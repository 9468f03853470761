package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Session is the part of the orchestrator the inspector API drives.
type Session interface {
	Snapshot(ctx context.Context) (orch.Snapshot, error)
	Subscribe(ctx context.Context) (<-chan orch.Snapshot, func(), error)
	Join(ctx context.Context, req orch.JoinRequest) (orch.Snapshot, error)
	Leave(ctx context.Context) error

	SetAudioEnabled(ctx context.Context, enabled bool) error
	SetVideoEnabled(ctx context.Context, enabled bool) error
	SetScreenSharing(ctx context.Context, enabled bool) error

	KickParticipant(ctx context.Context, target domain.UserID) error
	StopParticipantMedia(ctx context.Context, target domain.UserID, what domain.MediaTarget) error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error

	SendChat(ctx context.Context, content string) (domain.ChatMessage, error)
	EditMessage(ctx context.Context, id domain.MessageID, content string) (domain.ChatMessage, error)
	DeleteMessage(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error)
	LoadOlder(ctx context.Context, cursor string) (int, error)
	SubmitWhiteboard(ctx context.Context, scene domain.Scene) error
}

// RequestIDMiddleware tags every request so its log lines can be correlated.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, s Session) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	h := &handlers{s: s, cfg: cfg}
	api := r.Group("/api")

	api.GET("/session", h.session)
	api.POST("/session/join", h.join)
	api.POST("/session/leave", h.leave)
	api.GET("/participants", h.participants)

	api.GET("/chat", h.chat)
	api.GET("/chat/older", h.chatOlder)
	api.POST("/chat", h.sendChat)
	api.PATCH("/chat/:id", h.editChat)
	api.DELETE("/chat/:id", h.deleteChat)

	api.POST("/media", h.media)
	api.POST("/recording/:action", h.recording)
	api.POST("/moderation/:userId", h.moderation)
	api.PUT("/whiteboard", h.whiteboard)

	api.GET("/ws/projection", func(c *gin.Context) {
		serveProjection(ctx, c, s)
	})

	return r
}

type handlers struct {
	s   Session
	cfg *config.Config
}

func (h *handlers) session(c *gin.Context) {
	snap, err := h.s.Snapshot(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// join connects as the configured user. Joining while connected returns the
// current state.
func (h *handlers) join(c *gin.Context) {
	snap, err := h.s.Join(c.Request.Context(), orch.JoinRequest{
		SessionID: domain.SessionID(h.cfg.SessionID),
		User:      h.cfg.User(),
		Token:     h.cfg.AuthToken,
	})
	if err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Str("session", string(snap.SessionID)).Msg("join requested")
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) leave(c *gin.Context) {
	if err := h.s.Leave(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/participants?online=true
func (h *handlers) participants(c *gin.Context) {
	snap, err := h.s.Snapshot(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := snap.Participants
	if c.Query("online") == "true" {
		out = lo.Filter(out, func(p domain.Participant, _ int) bool { return p.IsOnline })
	}
	c.JSON(http.StatusOK, gin.H{
		"participants":         out,
		"active_screen_sharer": snap.ActiveSharer,
	})
}

func (h *handlers) chat(c *gin.Context) {
	snap, err := h.s.Snapshot(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":         snap.Messages,
		"has_more_history": snap.HasMoreHistory,
	})
}

// GET /api/chat/older?cursor=... ; no cursor continues from the oldest loaded page.
func (h *handlers) chatOlder(c *gin.Context) {
	added, err := h.s.LoadOlder(c.Request.Context(), c.Query("cursor"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

type chatRequest struct {
	Content string `json:"content"`
}

func (h *handlers) sendChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	msg, err := h.s.SendChat(c.Request.Context(), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, msg)
}

func (h *handlers) editChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	msg, err := h.s.EditMessage(c.Request.Context(), domain.MessageID(c.Param("id")), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, msg)
}

func (h *handlers) deleteChat(c *gin.Context) {
	msg, err := h.s.DeleteMessage(c.Request.Context(), domain.MessageID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, msg)
}

type mediaRequest struct {
	Kind    domain.MediaKind `json:"kind"`
	Enabled bool             `json:"enabled"`
}

func (h *handlers) media(c *gin.Context) {
	var req mediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ctx := c.Request.Context()
	var err error
	switch req.Kind {
	case domain.MediaAudio:
		err = h.s.SetAudioEnabled(ctx, req.Enabled)
	case domain.MediaVideo:
		err = h.s.SetVideoEnabled(ctx, req.Enabled)
	case domain.MediaScreen:
		err = h.s.SetScreenSharing(ctx, req.Enabled)
	default:
		err = domain.ErrUnknownKind
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *handlers) recording(c *gin.Context) {
	var err error
	switch c.Param("action") {
	case "start":
		err = h.s.StartRecording(c.Request.Context())
	case "stop":
		err = h.s.StopRecording(c.Request.Context())
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown recording action"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// moderationRequest is either {"action":"kick"} or {"media":"audio|video|both"}.
type moderationRequest struct {
	Action domain.Action      `json:"action"`
	Media  domain.MediaTarget `json:"media"`
}

func (h *handlers) moderation(c *gin.Context) {
	var req moderationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	target := domain.UserID(c.Param("userId"))
	ctx := c.Request.Context()
	var err error
	switch {
	case req.Action == domain.ActionKick:
		err = h.s.KickParticipant(ctx, target)
	case req.Action == domain.ActionMute:
		err = h.s.StopParticipantMedia(ctx, target, domain.TargetAudio)
	case req.Action == domain.ActionStopVideo:
		err = h.s.StopParticipantMedia(ctx, target, domain.TargetVideo)
	case req.Action == "" && req.Media != "":
		err = h.s.StopParticipantMedia(ctx, target, req.Media)
	default:
		err = domain.ErrUnknownAction
	}
	if err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Str("target", string(target)).Msg("moderation requested")
	c.Status(http.StatusAccepted)
}

func (h *handlers) whiteboard(c *gin.Context) {
	var scene domain.Scene
	if err := c.ShouldBindJSON(&scene); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scene"})
		return
	}
	if err := h.s.SubmitWhiteboard(c.Request.Context(), scene); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Err(err).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied),
		errors.Is(err, domain.ErrJoinWindowClosed):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrScreenAlreadyShared),
		errors.Is(err, domain.ErrNotConnected),
		errors.Is(err, domain.ErrAlreadyConnected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStaleEvent):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrUnknownKind),
		errors.Is(err, domain.ErrUnknownAction),
		errors.Is(err, domain.ErrUserIDEmpty),
		errors.Is(err, domain.ErrUnknownRole):
		return http.StatusBadRequest
	case errors.Is(err, orch.ErrStopped), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
