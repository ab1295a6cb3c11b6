package app

import (
	"gorm.io/gorm"

	apphttp "github.com/yungbote/guildops-backend/internal/http"
	httpH "github.com/yungbote/guildops-backend/internal/http/handlers"
	httpMW "github.com/yungbote/guildops-backend/internal/http/middleware"
	"github.com/yungbote/guildops-backend/internal/observability"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
)

func wireRouterConfig(log *logger.Logger, cfg Config, gdb *gorm.DB, metrics *observability.Metrics, svcs Services) apphttp.RouterConfig {
	log.Info("Wiring handlers...")
	return apphttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    cfg.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, svcs.Auth),
		QuestHandler:   httpH.NewQuestHandler(log, svcs.Quest),
		HealthHandler:  httpH.NewHealthHandler(gdb),
	}
}
