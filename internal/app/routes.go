package app

import (
	"net/http"

	"github.com/tukio-events/tukio/internal/handlers"
	"github.com/tukio-events/tukio/internal/middleware"
)

func (a *App) loadRoutes() http.Handler {
	router := http.NewServeMux()

	// ping handler
	router.HandleFunc("GET /ping", handlers.PingHandler)

	// Every /api route gets a pooled database connection for the duration
	// of the request. The websocket route stays outside this stack: a
	// watch connection lives for minutes and must not pin a pool slot.
	api := http.NewServeMux()

	authHandler := &handlers.AuthHandler{
		Logger:       a.logger,
		Config:       a.config,
		UserEventBus: a.userEventBus,
	}
	authHandler.RegisterHandlers(api)

	eventHandler := &handlers.EventHandler{
		Logger:      a.logger,
		Config:      a.config,
		Coordinator: a.coordinator,
		Cache:       a.eventCache,
		EventBus:    a.attendanceEventBus,
	}
	eventHandler.RegisterHandlers(a.config, api)

	router.Handle("/api/",
		middleware.WithDBConnection(a.logger, a.pool)(api),
	)

	// Live attendee updates
	watchHandler := handlers.NewWatchHandler(a.logger, a.hub, a.config.AppConfig.AllowedOrigins)
	watchHandler.RegisterHandlers(router)

	return router

}
