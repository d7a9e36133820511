package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tukio-events/tukio/database"
	"github.com/tukio-events/tukio/internal/attendance"
	"github.com/tukio-events/tukio/internal/cache"
	"github.com/tukio-events/tukio/internal/config"
	"github.com/tukio-events/tukio/internal/eventbus"
	"github.com/tukio-events/tukio/internal/fanout"
	"github.com/tukio-events/tukio/internal/middleware"
)

// LoadConfig is re-exported so main only ever talks to the app package.
func LoadConfig() (*config.Config, error) {
	return config.LoadConfig()
}

type App struct {
	config             *config.Config
	logger             *slog.Logger
	pool               *pgxpool.Pool
	hub                *fanout.Bus
	coordinator        *attendance.Coordinator
	eventCache         *cache.EventCache
	userEventBus       *eventbus.UserEventBus
	attendanceEventBus *eventbus.AttendanceEventBus
}

// Returns a new instance of the application
// with a connection instance to the database pool
func New(logger *slog.Logger, config *config.Config) (*App, error) {

	dbConfig, err := pgxpool.ParseConfig(fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=disable",
		config.DatabaseConfig.DatabaseUser,
		config.DatabaseConfig.DatabasePassword,
		config.DatabaseConfig.DatabaseHost,
		config.DatabaseConfig.DatabasePort,
		config.DatabaseConfig.DatabaseName,
	))
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = config.DatabaseConfig.DatabasePoolMaxConnections
	dbConfig.MinConns = config.DatabaseConfig.DatabasePoolMinConnections
	dbConfig.MaxConnLifetime = time.Hour * time.Duration(config.DatabaseConfig.DatabasePoolMaxConnectionLifetime)

	connPool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		return nil, err
	}

	userEventBus, err := eventbus.NewUserEventBus(config, logger)
	if err != nil {
		return nil, err
	}

	attendanceEventBus, err := eventbus.NewAttendanceEventBus(config, logger)
	if err != nil {
		return nil, err
	}

	hub := fanout.NewBus(logger)

	return &App{
		config:             config,
		logger:             logger,
		pool:               connPool,
		hub:                hub,
		coordinator:        attendance.NewCoordinator(hub, logger),
		eventCache:         cache.NewEventCache(config, logger),
		userEventBus:       userEventBus,
		attendanceEventBus: attendanceEventBus,
	}, nil
}

// Starts the application server
func (a *App) Start(ctx context.Context) error {

	if err := database.RunMigrations(a.logger, a.pool); err != nil {
		return err
	}

	middlewares := middleware.CreateStack(
		middleware.Logging(a.logger),
		middleware.CORSMiddleware(a.config.AppConfig.AllowedOrigins),
	)
	router := a.loadRoutes()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.config.AppConfig.Address, a.config.AppConfig.Port),
		Handler: middlewares(router),
	}

	errCh := make(chan error, 1)

	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}

		close(errCh)
	}()

	a.logger.Info("server running",
		slog.String("Address", a.config.AppConfig.Address),
		slog.Int("port", a.config.AppConfig.Port),
	)

	select {
	// Wait until we receive SIGINT (ctrl+c on cli)
	case <-ctx.Done():
		break
	case err := <-errCh:
		return err
	}

	sCtx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()

	srv.Shutdown(sCtx)

	a.userEventBus.Close()
	a.attendanceEventBus.Close()
	if err := a.eventCache.Close(); err != nil {
		a.logger.Warn("Failed to close event cache", slog.Any("error", err))
	}
	a.pool.Close()

	return nil
}
