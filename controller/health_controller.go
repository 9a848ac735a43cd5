package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecoalerta/chat-backend/models"
)

// Health answers liveness checks. The request body is ignored.
func Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
