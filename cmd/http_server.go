package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/audit"
	auditPostgres "github.com/frahmantamala/sangha-registry/internal/audit/postgres"
	"github.com/frahmantamala/sangha-registry/internal/auth"
	authPostgres "github.com/frahmantamala/sangha-registry/internal/auth/postgres"
	"github.com/frahmantamala/sangha-registry/internal/authz"
	authzPostgres "github.com/frahmantamala/sangha-registry/internal/authz/postgres"
	"github.com/frahmantamala/sangha-registry/internal/branch"
	branchPostgres "github.com/frahmantamala/sangha-registry/internal/branch/postgres"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	"github.com/frahmantamala/sangha-registry/internal/monk"
	monkPostgres "github.com/frahmantamala/sangha-registry/internal/monk/postgres"
	"github.com/frahmantamala/sangha-registry/internal/observability"
	"github.com/frahmantamala/sangha-registry/internal/transport/rest"
	"github.com/frahmantamala/sangha-registry/internal/transport/swagger"
	"github.com/frahmantamala/sangha-registry/internal/user"
	userPostgres "github.com/frahmantamala/sangha-registry/internal/user/postgres"
	"github.com/frahmantamala/sangha-registry/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer()
	},
}

type Dependencies struct {
	Config  *internal.Config
	DB      *gorm.DB
	SQLX    *sqlx.DB
	Router  *chi.Mux
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

func startHTTPServer() error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	if err := setupRoutes(deps); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := internal.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	if err := deps.SQLX.Close(); err != nil {
		deps.Logger.Error("Database close error", "error", err)
	}

	deps.Logger.Info("Server stopped")
	return nil
}

func setupRoutes(deps *Dependencies) error {
	lg := deps.Logger
	cfg := deps.Config

	if _, err := swagger.Load(context.Background()); err != nil {
		return fmt.Errorf("openapi document: %w", err)
	}

	mgr := uow.NewManager(deps.DB, lg)
	sink, err := audit.Install(deps.DB, mgr, cfg.Audit, lg, deps.Metrics)
	if err != nil {
		return err
	}

	authzRepo := authzPostgres.NewAuthzRepository(deps.DB)
	resolver := authz.NewResolver(authzRepo, lg)
	gate := authz.NewGate(resolver, deps.Metrics, lg)

	branchRepo := branchPostgres.NewBranchRepository(deps.DB)
	scopes := branch.NewScopeFilter(branchRepo, resolver, lg,
		branch.WithCodeCache(cfg.Authz.BranchCacheSize, cfg.Authz.BranchCacheTTL))

	authService := auth.NewService(
		authPostgres.NewRepository(deps.DB),
		auth.NewJWTTokenGenerator(cfg.Security),
		resolver,
		cfg.Security.BCryptCost,
		lg,
	)

	handlers := rest.Handlers{
		Auth:   auth.NewHandler(authService),
		User:   user.NewHandler(user.NewService(userPostgres.NewRepository(deps.DB), resolver, mgr, lg)),
		Authz:  authz.NewHandler(authz.NewService(authzRepo, resolver, mgr, lg)),
		Branch: branch.NewHandler(branch.NewService(branchRepo, lg), scopes),
		Monk:   monk.NewHandler(monk.NewService(monkPostgres.NewMonkRepository(deps.DB), mgr, scopes, lg)),
		Audit:  audit.NewHandler(audit.NewService(auditPostgres.NewAuditRepository(deps.SQLX), lg)),
	}

	rest.RegisterAllRoutes(deps.Router, rest.RouterDeps{
		Config:   cfg,
		DB:       deps.SQLX.DB,
		Gate:     gate,
		APICalls: sink,
		Metrics:  deps.Metrics,
		Logger:   lg,
	}, handlers)
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := logger.Configure(config.Observability.Logging.Level, config.Observability.Logging.Format)

	db, sqlxDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Dependencies{
		Config:  config,
		DB:      db,
		SQLX:    sqlxDB,
		Router:  chi.NewRouter(),
		Metrics: observability.NewMetrics(),
		Logger:  lg,
	}, nil
}

// initDB opens gorm over the pgx stdlib driver and shares the pool with sqlx
// for the read-side repositories.
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, *sqlx.DB, error) {
	const driver = "pgx"

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:        cfg.GetDSN(),
		DriverName: driver,
	}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access db pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, sqlx.NewDb(sqlDB, driver), nil
}
