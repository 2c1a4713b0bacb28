package routes

import (
	"github.com/gin-gonic/gin"

	"signalboard/controllers"
	"signalboard/scheduler"
	"signalboard/services/push"
	"signalboard/services/signals"
	"signalboard/services/stream"
)

// SetupRoutes sets up all API routes.
func SetupRoutes(router *gin.Engine, engine *signals.Engine, runner *scheduler.Runner,
	broadcaster *stream.Broadcaster, store *push.Store, keys *push.VAPIDKeys) {

	streamController := controllers.NewStreamController(broadcaster)
	pushController := controllers.NewPushController(store, keys)
	signalController := controllers.NewSignalController(engine, runner)

	// Dashboard-facing surface: event stream, push enrollment, config.
	router.GET("/events", streamController.Events)
	router.GET("/vapid", pushController.GetVAPIDKey)
	router.POST("/subscribe", pushController.Subscribe)
	router.GET("/config", signalController.GetConfig)
	router.POST("/analyze", signalController.Analyze)

	// API v1 group
	api := router.Group("/api/v1")
	{
		api.GET("/signals", signalController.GetSignals)
	}
}
