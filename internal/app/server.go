package app

import (
	"github.com/gorilla/mux"
	"threat-cache/internal/handlers"
	"threat-cache/internal/server"
)

// RunServer builds the admin HTTP server. It is not started.
func (app *App) RunServer() (*server.Server, error) {
	h := handlers.New(app.Manager, app.Logger)

	rateLimiter, err := app.InitializeRateLimiter()
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	SetupRoutes(router, h, app.Auth, rateLimiter, app.Metrics, app.Logger)

	return server.New(router, app.Config.Port, app.Config.TLSCertFile, app.Config.TLSKeyFile), nil
}
