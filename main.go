package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/guided-traffic/meetup-client/api"
	"github.com/guided-traffic/meetup-client/cache"
	"github.com/guided-traffic/meetup-client/config"
	"github.com/guided-traffic/meetup-client/database"
	"github.com/guided-traffic/meetup-client/handlers"
	"github.com/guided-traffic/meetup-client/middleware"
	"github.com/guided-traffic/meetup-client/models"
	"github.com/guided-traffic/meetup-client/repository"
	"github.com/guided-traffic/meetup-client/router"
	"github.com/guided-traffic/meetup-client/services"
	"github.com/guided-traffic/meetup-client/websocket"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("Configuration loaded - API: %s, Chat: %s, User: %s", cfg.APIBaseURL, cfg.ChatWSURL, cfg.UserID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Badge snapshot ledger
	var states repository.BadgeStateRepository
	if cfg.DBType == "memory" {
		states = repository.NewMemoryBadgeStateRepository()
		log.Println("Badge snapshots kept in memory")
	} else {
		if err := database.Init(databaseConfig(cfg)); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()
		states = repository.NewSQLBadgeStateRepository()
	}

	// Badge cache
	var badgeCache cache.BadgeCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisBadgeCache(ctx, cfg.RedisURL, cfg.BadgeCacheTTL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		badgeCache = redisCache
		log.Println("Badge cache backed by redis")
	} else {
		badgeCache = cache.NewMemoryBadgeCache(cfg.BadgeCacheTTL)
	}

	apiClient := api.NewClient(cfg.APIBaseURL, cfg.AccessToken, cfg.UserID, cfg.FetchTimeout)

	// UI event stream
	wsHub := websocket.NewHub(cfg.AllowedOrigins())
	go wsHub.Run(ctx)
	log.Println("WebSocket hub started")

	// Chat connection manager
	header := http.Header{}
	if cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AccessToken)
	}
	manager := websocket.NewManager(websocket.SessionOptions{
		Dialer:         websocket.NewGorillaDialer(cfg.ChatWSURL, header, cfg.WSIdleTimeout),
		ConnectTimeout: cfg.ConnectTimeout,
		QueueSize:      cfg.SendQueueSize,
		BaseDelay:      cfg.ReconnectBaseDelay,
		MaxDelay:       cfg.ReconnectMaxDelay,
		Jitter:         cfg.ReconnectJitter,
		MaxRetries:     cfg.ReconnectMaxRetries,
	}, router.New(), apiClient)
	defer manager.Close()
	manager.Subscribe(wsHub.Relay)

	// Badges
	badgeService := services.NewBadgeService(apiClient, badgeCache, states, cfg.UserID, cfg.FetchTimeout)
	badgeService.OnUnlock(wsHub.BroadcastBadgeUnlocked)
	badgeService.OnRefresh(func(badges []models.BadgeView) {
		wsHub.BroadcastBadgesUpdated(len(badges))
	})
	coordinator := services.NewSyncCoordinator(badgeService, apiClient)
	defer coordinator.Close()
	coordinator.Refetch()

	limiterStore := middleware.NewLimiterStore(cfg.RatePerMinute, cfg.RateBurst, time.Minute)
	defer limiterStore.Stop()

	// Initialize handlers
	roomHandler := handlers.NewRoomHandler(manager)
	wsHandler := handlers.NewWebSocketHandler(wsHub, manager)
	badgeHandler := handlers.NewBadgeHandler(coordinator)
	announcementHandler := handlers.NewAnnouncementHandler(apiClient)

	r := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	r.Use(cors.New(corsConfig))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"session": manager.Status().State,
		})
	})

	// API routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(limiterStore))
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "healthy",
			})
		})

		// Rooms
		v1.POST("/rooms/:id/enter", roomHandler.Enter)
		v1.POST("/rooms/leave", roomHandler.Leave)
		v1.GET("/rooms/current", roomHandler.Current)
		v1.POST("/rooms/current/reconnect", roomHandler.Reconnect)
		v1.GET("/rooms/current/messages", roomHandler.GetMessages)
		v1.POST("/rooms/current/messages", roomHandler.SendMessage)
		v1.POST("/rooms/current/bills", roomHandler.SendBill)
		v1.PUT("/rooms/current/focus", roomHandler.SetFocus)

		// UI event stream
		v1.GET("/ws", wsHandler.HandleConnection)
		v1.GET("/ws/status", wsHandler.GetStatus)

		// Badges
		v1.GET("/badges", badgeHandler.GetAll)
		v1.POST("/badges/update-all", badgeHandler.UpdateAll)
		v1.POST("/badges/:code/update", badgeHandler.Update)

		// Announcements
		v1.GET("/announcements", announcementHandler.GetAll)
		v1.GET("/announcements/:id", announcementHandler.GetByID)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}

func databaseConfig(cfg *config.Config) database.Config {
	mysqlCfg := database.DefaultMySQLConfig()
	mysqlCfg.Host = cfg.MySQLHost
	mysqlCfg.Port = cfg.MySQLPort
	mysqlCfg.User = cfg.MySQLUser
	mysqlCfg.Password = cfg.MySQLPassword
	mysqlCfg.Database = cfg.MySQLDatabase
	mysqlCfg.TLSEnabled = cfg.MySQLTLSEnabled
	mysqlCfg.TLSSkipVerify = cfg.MySQLTLSSkipVerify
	mysqlCfg.TLSCACert = cfg.MySQLTLSCACert
	mysqlCfg.MaxOpenConns = cfg.MySQLMaxOpenConns
	mysqlCfg.MaxIdleConns = cfg.MySQLMaxIdleConns
	mysqlCfg.ConnMaxLifetime = cfg.MySQLConnMaxLifetime
	mysqlCfg.ConnMaxIdleTime = cfg.MySQLConnMaxIdleTime

	return database.Config{
		Type:       database.DBType(cfg.DBType),
		SQLitePath: cfg.DBPath,
		MySQL:      mysqlCfg,
	}
}
