package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/guildops-backend/internal/http/handlers"
	httpMW "github.com/yungbote/guildops-backend/internal/http/middleware"
	"github.com/yungbote/guildops-backend/internal/observability"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	QuestHandler  *httpH.QuestHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	guild := api.Group("/guilds/:guildID")
	guild.Use(httpMW.GuildScope())
	{
		if cfg.QuestHandler != nil {
			guild.GET("/quest-blueprints", cfg.QuestHandler.ListBlueprints)
			guild.POST("/quest-blueprints", cfg.QuestHandler.CreateBlueprint)
			guild.GET("/quest-blueprints/:id", cfg.QuestHandler.GetBlueprint)
			guild.PATCH("/quest-blueprints/:id", cfg.QuestHandler.UpdateBlueprint)
			guild.PUT("/quest-blueprints/:id/graph", cfg.QuestHandler.UpsertGraph)
			guild.POST("/quest-blueprints/:id/assignments", cfg.QuestHandler.StartAssignment)

			guild.PATCH("/quest-assignments/:id/status", cfg.QuestHandler.UpdateAssignmentStatus)
			guild.POST("/quest-assignments/:id/progress", cfg.QuestHandler.ApplyProgress)

			guild.GET("/characters", cfg.QuestHandler.ListMyCharacters)
		}
	}

	return r
}
