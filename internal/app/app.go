package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/config"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/database"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/middleware"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/modules/transform"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/jwt"
	pkgredis "github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	logger *zap.Logger
}

// New initializes the application: config → DB → Redis → pipeline → routes.
func New(logger *zap.Logger, cfg *config.AppConfig, autoMigrate bool) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	jwt.SetSecret(cfg.JWTSecret)

	db, err := database.Connect(cfg, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	// The hot cache layer is optional; the pipeline runs fine without it.
	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	svc, err := transform.NewService(db, rc, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("transform service: %w", err)
	}

	app := &App{cfg: cfg, router: router, db: db, rc: rc, logger: logger}
	app.registerRoutes(svc)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown releases held connections.
func (a *App) Shutdown() {
	if a.rc != nil {
		_ = a.rc.Close()
	}
}
