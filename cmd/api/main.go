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

	"github.com/bikedataproject/identity-api/internal/config"
	"github.com/bikedataproject/identity-api/internal/handler"
	"github.com/bikedataproject/identity-api/internal/middleware"
	"github.com/bikedataproject/identity-api/internal/provider"
	pgRepo "github.com/bikedataproject/identity-api/internal/repository/postgres"
	redisRepo "github.com/bikedataproject/identity-api/internal/repository/redis"
	"github.com/bikedataproject/identity-api/internal/service"
	"github.com/bikedataproject/identity-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	accountRepo := pgRepo.NewAccountRepo(db)
	linkRepo := pgRepo.NewProviderLinkRepo(db)

	sessionRepo, err := redisRepo.NewSessionRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize SessionRepo: %v", err)
		os.Exit(1)
	}

	providerClient, err := provider.NewFitbitClient(cfg.Provider)
	if err != nil {
		log.Printf("Failed to initialize provider client: %v", err)
		os.Exit(1)
	}

	var emailService service.EmailService
	if cfg.Email.Enabled {
		emailService, err = service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize email service: %v", err)
			os.Exit(1)
		}
	} else {
		log.Println("Outbound email is disabled, confirmation links go to the log")
		emailService = &service.NoopEmailService{}
	}

	confirmer, err := service.NewConfirmationIssuer(cfg.Confirm.SigningKey, cfg.Confirm.TTL)
	if err != nil {
		log.Printf("Failed to initialize confirmation issuer: %v", err)
		os.Exit(1)
	}

	accountService, err := service.NewAccountService(accountRepo, sessionRepo, emailService, confirmer, cfg.Session.TTL())
	if err != nil {
		log.Printf("Failed to initialize AccountService: %v", err)
		os.Exit(1)
	}

	linkService, err := service.NewLinkService(accountRepo, linkRepo, sessionRepo, providerClient, cfg.Session.TTL())
	if err != nil {
		log.Printf("Failed to initialize LinkService: %v", err)
		os.Exit(1)
	}

	accountHandler := handler.NewAccountHandler(accountService, cfg.Session)
	linkHandler := handler.NewLinkHandler(linkService, cfg.Session)
	sessionMiddleware := middleware.NewSessionMiddleware(accountService, cfg.Session.CookieName)

	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://www.bikedataproject.org", "http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	providerRoutes := router.Group("/provider", sessionMiddleware.Load())
	{
		providerRoutes.POST("/authorize", linkHandler.Authorize)
		providerRoutes.POST("/register", accountHandler.Register)
		providerRoutes.GET("/callback", linkHandler.Callback)
		providerRoutes.GET("/token", linkHandler.Token)
	}

	accountRoutes := router.Group("/account")
	{
		accountRoutes.POST("/register", accountHandler.Register)
		accountRoutes.GET("/confirmemail", accountHandler.ConfirmEmail)
		accountRoutes.POST("/login", accountHandler.Login)
		accountRoutes.POST("/logout", accountHandler.Logout)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Failed to close redis client: %v", err)
	}
	log.Println("Server stopped")
}
