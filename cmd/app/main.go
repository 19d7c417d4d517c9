package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"htb_guild_backend/internal/api"
	"htb_guild_backend/internal/middleware"
	"htb_guild_backend/internal/repository"
	"htb_guild_backend/internal/service"
	"htb_guild_backend/pkg/auth"
	"htb_guild_backend/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	ledgerService := service.NewLedgerService(repo)
	identityService := service.NewIdentityService(repo)
	notificationService := service.NewNotificationService(repo)
	rankService := service.NewRankService(repo, repo, repo)
	recurrenceService := service.NewRecurrenceService(repo, repo)
	questService := service.NewQuestService(repo, repo, rankService, recurrenceService, notificationService)
	duelService := service.NewDuelService(repo, repo, identityService, rankService, notificationService)

	tokenAuth := auth.NewTokenAuth(cfg.Auth.JWTSecret, cfg.Auth.ServiceToken)
	authz := middleware.NewAuthorization(identityService)

	hub := api.NewNotificationHub(&service.LogEmitter{})
	dispatcher := service.NewDispatcher(repo, hub, cfg.Scheduler.DispatchInterval)
	go dispatcher.Run(context.Background())

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	a := router.Group("/api/v1")
	api.NewQuestRoutes(a, questService, tokenAuth, authz)
	api.NewDuelRoutes(a, duelService, tokenAuth, authz)
	api.NewPointsRoutes(a, ledgerService, rankService, notificationService, tokenAuth, authz)
	api.NewNotificationRoutes(a, notificationService, hub, tokenAuth)
	api.NewSchedulerRoutes(a, recurrenceService, tokenAuth)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
