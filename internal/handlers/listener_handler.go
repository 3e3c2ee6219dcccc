package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/aria/internal/domains/listener"
	"github.com/xpanvictor/aria/pkg/Logger"
)

// ListenerHandler handles listener control and utterance memory requests
type ListenerHandler struct {
	listenerService listener.ListenerService
	logger          *Logger.Logger
}

// NewListenerHandler creates a new listener handler
func NewListenerHandler(listenerService listener.ListenerService, logger *Logger.Logger) *ListenerHandler {
	return &ListenerHandler{
		listenerService: listenerService,
		logger:          Logger.OrNop(logger),
	}
}

// Start handles arming the microphone
// @Summary Start listening
// @Description Start the capture loop on the configured input device
// @Tags Listener
// @Produce json
// @Success 202 {object} StatusResponse "Listener started"
// @Failure 409 {object} ErrorResponse "Listener already running"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /listener/start [post]
func (h *ListenerHandler) Start(c *gin.Context) {
	if err := h.listenerService.Start(c.Request.Context()); err != nil {
		if errors.Is(err, listener.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "Listener already running"})
			return
		}
		h.logger.Errorf("start listener error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusAccepted, StatusResponse{Status: h.listenerService.Status()})
}

// Stop handles disarming the microphone
// @Summary Stop listening
// @Description Stop the capture loop, discarding any utterance in progress
// @Tags Listener
// @Produce json
// @Success 200 {object} StatusResponse "Listener stopped"
// @Failure 409 {object} ErrorResponse "Listener not running"
// @Router /listener/stop [post]
func (h *ListenerHandler) Stop(c *gin.Context) {
	if err := h.listenerService.Stop(); err != nil {
		if errors.Is(err, listener.ErrNotRunning) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "Listener not running"})
			return
		}
		h.logger.Errorf("stop listener error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: h.listenerService.Status()})
}

// Status handles getting the listener state
// @Summary Listener status
// @Tags Listener
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /listener/status [get]
func (h *ListenerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: h.listenerService.Status()})
}

// ListUtterances handles listing remembered utterances
// @Summary List utterances
// @Description Newest first
// @Tags Utterances
// @Produce json
// @Param limit query int false "Maximum number of utterances" default(20)
// @Success 200 {object} ListUtterancesResponse
// @Failure 400 {object} ErrorResponse "Invalid limit"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /utterances [get]
func (h *ListenerHandler) ListUtterances(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	records, err := h.listenerService.Utterances(limit)
	if err != nil {
		h.logger.Errorf("list utterances error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, ListUtterancesResponse{Utterances: records, Limit: limit})
}

// ClearUtterances handles forgetting every utterance
// @Summary Clear utterance memory
// @Tags Utterances
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /utterances [delete]
func (h *ListenerHandler) ClearUtterances(c *gin.Context) {
	if err := h.listenerService.ClearUtterances(); err != nil {
		h.logger.Errorf("clear utterances error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Memory has been cleared."})
}
