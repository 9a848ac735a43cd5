package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	log "github.com/sirupsen/logrus"

	"github.com/ecoalerta/chat-backend/models"
	"github.com/ecoalerta/chat-backend/services"
)

// ChatController handles the chat endpoints. It depends on the ChatService
// to perform the actual business logic.
type ChatController struct {
	chatService  services.ChatService
	legacyFormat services.ResponseFormat
	timeout      time.Duration
}

// NewChatController creates a ChatController. legacyFormat controls how the
// root endpoint serializes answers; timeout bounds each chat request.
func NewChatController(service services.ChatService, legacyFormat services.ResponseFormat, timeout time.Duration) *ChatController {
	return &ChatController{
		chatService:  service,
		legacyFormat: legacyFormat,
		timeout:      timeout,
	}
}

// HandleMessage is the handler for POST /. It answers in the configured
// legacy format, by default the marker-delimited string.
func (c *ChatController) HandleMessage(ctx *gin.Context) {
	result, ok := c.handle(ctx)
	if !ok {
		return
	}

	if c.legacyFormat == services.FormatJSON {
		ctx.JSON(http.StatusOK, services.ToChatResponse(result))
		return
	}

	body, err := services.FormatTextResponse(c.legacyFormat, result)
	if err != nil {
		log.Errorf("CONTROLLER: Failed to format response: %v", err)
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to format response"})
		return
	}
	ctx.String(http.StatusOK, body)
}

// Chat is the handler for POST /api/v1/chat. It always answers with the
// structured {sources, text} object.
func (c *ChatController) Chat(ctx *gin.Context) {
	result, ok := c.handle(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, services.ToChatResponse(result))
}

// handle binds the request and runs the chat service. On failure it writes
// the error response itself and returns false.
func (c *ChatController) handle(ctx *gin.Context) (*models.ChatResult, bool) {
	raw, err := ctx.GetRawData()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Could not read request body"})
		return nil, false
	}
	log.Debugf("CONTROLLER: Raw request body: %s", raw)

	var req models.ChatRequest
	if err := binding.JSON.BindBody(raw, &req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return nil, false
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), c.timeout)
	defer cancel()

	result, err := c.chatService.HandleMessage(reqCtx, req)
	if err != nil {
		status, message := errorStatus(err)
		log.WithError(err).WithField("status", status).Error("CONTROLLER: Chat request failed")
		ctx.JSON(status, models.ErrorResponse{Error: message})
		return nil, false
	}
	return result, true
}

// errorStatus maps service errors to the status and message sent to clients.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidImage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrVisionDisabled):
		return http.StatusNotImplemented, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The assistant took too long to answer"
	default:
		return http.StatusInternalServerError, "Failed to generate AI response"
	}
}
