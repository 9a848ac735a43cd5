package controller

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter wires the HTTP routes. An empty origin list or "*" allows any origin.
func NewRouter(chat *ChatController, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors.New(corsConfig(corsOrigins)))

	router.GET("/health", Health)
	router.POST("/health", Health)
	router.GET("/", Health)

	router.POST("/", chat.HandleMessage)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/chat", chat.Chat)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		log.WithFields(log.Fields{
			"method":   ctx.Request.Method,
			"path":     ctx.Request.URL.Path,
			"status":   ctx.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   ctx.ClientIP(),
		}).Info("HTTP request")
	}
}
