package router

import (
	"EdubotKing-Backend/internal/api"
	"EdubotKing-Backend/internal/config"
	"EdubotKing-Backend/internal/middleware"
	"log/slog"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(studyHandler *api.StudyHandler, cfg *config.Config, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORS.AllowedOrigins) == 0 || slices.Contains(cfg.CORS.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Content-Type", middleware.RequestIDHeader)
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))

	if cfg.Server.RateLimitRPS > 0 {
		r.Use(middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst).Limit())
	}

	r.GET("/", studyHandler.RootHandler)
	r.GET("/health", studyHandler.HealthHandler)

	mountStudyRoutes(r.Group(""), studyHandler)
	apiV1 := r.Group("/api/v1")
	{
		mountStudyRoutes(apiV1, studyHandler)
		apiV1.GET("/health", studyHandler.HealthHandler)
	}

	return r
}

func mountStudyRoutes(g *gin.RouterGroup, h *api.StudyHandler) {
	g.POST("/summary", h.SummaryHandler)
	g.POST("/quiz", h.QuizHandler)
	g.POST("/audio-summary", h.AudioHandler)
}
