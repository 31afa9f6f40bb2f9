package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/de-tools/market-pulse/pkg/handlers/report"
	pulsemiddleware "github.com/de-tools/market-pulse/pkg/server/middleware"
	configstore "github.com/de-tools/market-pulse/pkg/store/config"
	reportstore "github.com/de-tools/market-pulse/pkg/store/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Dependencies struct {
	Reports     reportstore.Store
	Config      *configstore.Store
	Coordinator handlers.Coordinator
	Scheduler   handlers.Reloader
	Logger      zerolog.Logger
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// ConfigureRouter wires the API routes. Split out from NewWebAPI so
// tests can drive the router through httptest.
func ConfigureRouter(config Config) *chi.Mux {
	deps := config.Dependencies
	handler := handlers.NewHandler(deps.Reports, deps.Config, deps.Coordinator, deps.Scheduler)

	router := chi.NewRouter()
	router.Use(pulsemiddleware.Logger(&deps.Logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.Health)
		r.Get("/reports", handler.ListReports)
		r.Get("/reports/{date}", handler.GetReport)
		r.Get("/reports/{date}/raw", handler.GetReportRaw)
		r.Get("/reports/{date}/text", handler.GetReportText)
		r.Get("/reports/{date}/debug", handler.GetReportDebug)
		r.Post("/run", handler.Run)
		r.Post("/run/trigger", handler.TriggerRun)
		r.Get("/run/stream", handler.StreamRun)
		r.Get("/run/ws", handler.StreamRunWS)
		r.Get("/config", handler.GetConfig)
		r.Post("/config", handler.UpdateConfig)
	})

	return router
}

type WebAPI struct {
	logger *zerolog.Logger
	server *http.Server
}

func NewWebAPI(config Config) *WebAPI {
	router := ConfigureRouter(config)
	logger := config.Dependencies.Logger

	return &WebAPI{
		logger: &logger,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: router,
		},
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
