package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/xpanvictor/aria/docs"
	"github.com/xpanvictor/aria/internal/domains/listener"
	"github.com/xpanvictor/aria/internal/handlers"
	"github.com/xpanvictor/aria/pkg/Logger"
)

type Dependencies struct {
	ListenerService listener.ListenerService
	Logger          *Logger.Logger
}

func NewServerDependencies(listenerService listener.ListenerService, logger *Logger.Logger) Dependencies {
	return Dependencies{
		ListenerService: listenerService,
		Logger:          logger,
	}
}

func InitializeRoutes(r *gin.Engine, dep Dependencies) {
	r.GET("/", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"message": "Server healthy"}) })
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	docs.SwaggerInfo.BasePath = "/"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	lh := handlers.NewListenerHandler(dep.ListenerService, dep.Logger)

	lg := r.Group("/listener")
	{
		lg.POST("/start", lh.Start)
		lg.POST("/stop", lh.Stop)
		lg.GET("/status", lh.Status)
	}

	ug := r.Group("/utterances")
	{
		ug.GET("", lh.ListUtterances)
		ug.DELETE("", lh.ClearUtterances)
	}
}
