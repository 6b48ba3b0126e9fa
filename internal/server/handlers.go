package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pfrederiksen/telefication/internal/config"
	"github.com/pfrederiksen/telefication/internal/event"
	"github.com/pfrederiksen/telefication/internal/logger"
	"github.com/pfrederiksen/telefication/internal/notifier"
	"github.com/pfrederiksen/telefication/internal/telegram"
)

// Replies of the admin endpoints
const (
	DefaultTestMessage = "This Is Test"
	MsgEnterID         = "Please enter ID"
	MsgEnterBotToken   = "Please enter bot token"
	MsgSendSomething   = "Please send something to your Bot (e.g. say hello :) ) so Telefication can get your id."
	MsgFailed          = "An error occurred"
)

const maxEventSize = 1 << 20

type testMessageRequest struct {
	ChatID  string  `form:"chat_id" binding:"required"`
	Message *string `form:"message"`
}

type chatIDRequest struct {
	BotToken string `form:"bot_token" binding:"required"`
}

// handleSendTestMessage sends a message to the given chat id with the stored transport
// settings and replies with the outcome as plain text.
func (s *Server) handleSendTestMessage(c *gin.Context) {
	var req testMessageRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.ChatID) == "" {
		c.String(http.StatusOK, MsgEnterID)
		return
	}

	cfg, ok := s.loadConfig(c)
	if !ok {
		return
	}

	message := DefaultTestMessage
	if req.Message != nil {
		message = *req.Message
	}

	client := notifier.NewSender(cfg, s.clientOpts...)
	outcome, err := client.SendMessage(c.Request.Context(), message, req.ChatID)
	if err != nil {
		logger.Warn("Test message failed", logger.Fields{"error": err.Error()})
		c.String(http.StatusOK, outcomeText(err))
		return
	}
	c.String(http.StatusOK, outcome)
}

// handleGetChatID looks up the id of whoever last wrote to the given bot
func (s *Server) handleGetChatID(c *gin.Context) {
	var req chatIDRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.BotToken) == "" {
		c.String(http.StatusOK, MsgEnterBotToken)
		return
	}

	cfg, ok := s.loadConfig(c)
	if !ok {
		return
	}
	cfg.BotToken = req.BotToken

	id, err := notifier.NewSender(cfg, s.clientOpts...).DiscoverChatID(c.Request.Context())
	if err != nil {
		var rejected *telegram.RejectedError
		if errors.As(err, &rejected) {
			c.String(http.StatusOK, rejected.Description)
			return
		}
		c.String(http.StatusOK, MsgSendSomething)
		return
	}
	c.String(http.StatusOK, id)
}

func outcomeText(err error) string {
	var rejected *telegram.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Description
	}
	return MsgFailed
}

type eventResponse struct {
	Kind    event.Kind        `json:"kind"`
	Results []notifier.Result `json:"results"`
}

// handleEvent accepts a payload for the kind in the path
func (s *Server) handleEvent(c *gin.Context) {
	kind, err := event.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	body, ok := readBody(c)
	if !ok {
		return
	}

	evt, err := event.Decode(kind, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.dispatch(c, evt)
}

// handleEnvelope accepts {"kind": ..., "payload": {...}}
func (s *Server) handleEnvelope(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	evt, err := event.DecodeEnvelope(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.dispatch(c, evt)
}

func (s *Server) dispatch(c *gin.Context, evt event.Event) {
	results, err := s.dispatcher.Dispatch(c.Request.Context(), evt)
	if err != nil && !errors.Is(err, notifier.ErrNoHandler) {
		logger.Error("Dispatch failed", logger.Fields{"kind": string(evt.Kind())}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []notifier.Result{}
	}
	c.JSON(http.StatusOK, eventResponse{Kind: evt.Kind(), Results: results})
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading body: " + err.Error()})
		return nil, false
	}
	if len(body) > maxEventSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return nil, false
	}
	return body, true
}

func (s *Server) handleGetSettings(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "settings store not configured"})
		return
	}

	cfg, err := s.store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg.Redacted())
}

// handlePutSettings replaces the stored settings. A bot token or API key equal to the
// masked current value keeps the current one, so a record read from GET can be sent back.
func (s *Server) handlePutSettings(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "settings store not configured"})
		return
	}

	body, ok := readBody(c)
	if !ok {
		return
	}

	cfg, err := config.ParseBytes("settings.json", body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	current, err := s.store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cfg.BotToken != "" && cfg.BotToken == config.MaskSecret(current.BotToken) {
		cfg.BotToken = current.BotToken
	}
	if cfg.APIKey != "" && cfg.APIKey == config.MaskSecret(current.APIKey) {
		cfg.APIKey = current.APIKey
	}

	if err := s.store.Save(c.Request.Context(), cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Info("Settings updated", logger.Fields{"request_id": c.GetString("request_id")})
	c.JSON(http.StatusOK, cfg.Redacted())
}

func (s *Server) handleStatus(c *gin.Context) {
	cfg, ok := s.loadConfig(c)
	if !ok {
		return
	}

	mode := "relay"
	if cfg.BotToken != "" {
		mode = "bot"
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":          mode,
		"bypass":        cfg.BotBypass != "",
		"channel_ready": cfg.ChannelReady(),
		"metrics":       logger.GetMetricsSnapshot(),
	})
}

// handleBypass is the receiving end of the bypass indirection
func (s *Server) handleBypass(c *gin.Context) {
	if s.bypass == nil {
		c.String(http.StatusNotFound, "bypass relay disabled")
		return
	}

	resp, err := s.bypass.Forward(c.Request.Context(), c.Request.URL.RawQuery)
	switch {
	case errors.Is(err, telegram.ErrNoBypassRequest):
		c.String(http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, telegram.ErrHostNotAllowed):
		c.String(http.StatusForbidden, err.Error())
		return
	case err != nil:
		logger.Warn("Bypass forward failed", logger.Fields{"error": err.Error()})
		c.String(http.StatusBadGateway, MsgFailed)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}

func (s *Server) loadConfig(c *gin.Context) (*config.Config, bool) {
	cfg, err := s.source.Load()
	if err != nil {
		logger.Error("Loading settings failed", nil, err)
		c.String(http.StatusInternalServerError, MsgFailed)
		return nil, false
	}
	return cfg, true
}
