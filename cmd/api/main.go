package main

import (
	_ "backend/api/swagger" // swagger docs
	"backend/internal/database"
	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/notify"
	"backend/internal/repository"
	"backend/internal/scheduler"
	"backend/internal/service"
	"backend/internal/session"
	"backend/internal/websocket"
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Document Approval API
// @version         1.0
// @description     Multi-stage document approval workflow (payment orders, exit permits, warehouse dispatches) with role-based permissions.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	refreshInterval := envDurationSeconds("REFRESH_INTERVAL_SECONDS", 60)
	idleTimeout := envDurationMinutes("IDLE_TIMEOUT_MINUTES", 60)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	sessionRegistry := notify.NewRegistry()

	userService := service.NewUserService(userRepo, db)
	roleService := service.NewRoleService(db)
	documentService := service.NewDocumentService(db, docRepo, userRepo, txManager)
	notificationService := service.NewNotificationService(db, docRepo, userRepo, sessionRegistry, wsHub)
	auditService := service.NewAuditService(auditRepo)

	if err := roleService.SeedDefaultRoles(context.Background()); err != nil {
		log.Printf("WARNING: Failed to seed default roles: %v", err)
	}

	// Idle sessions lose their live connection and diff state; the next
	// authenticated request starts a fresh session.
	idleGuard := session.NewGuard(idleTimeout, func(userID uuid.UUID) {
		notificationService.CloseSession(userID)
		wsHub.CloseUser(userID.String())
		log.Printf("Session expired for user %s after %s idle", userID, idleTimeout)
	})
	defer idleGuard.Stop()

	middleware.InitAuthMiddleware(db, idleGuard)

	teardown := func(userID uuid.UUID) {
		notificationService.CloseSession(userID)
		wsHub.CloseUser(userID.String())
		idleGuard.Remove(userID)
	}

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, roleService, teardown)
	roleHandler := handler.NewRoleHandler(roleService)
	documentHandler := handler.NewDocumentHandler(documentService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Periodic tasks run on named schedules so operators can see what
	// fires and when in the logs.
	sched := scheduler.New()
	sched.Add("document-refresh", refreshInterval, notificationService.RunDiffTick)
	sched.Start(context.Background())
	defer sched.Stop()

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret(), func(userID string) {
			if id, err := uuid.Parse(userID); err == nil {
				notificationService.OpenSession(id)
				idleGuard.Touch(id)
			}
		})
	})

	// Register API Routes
	userHandler.RegisterRoutes(router.Group(""))
	roleHandler.RegisterRoutes(router.Group(""))
	documentHandler.RegisterRoutes(router.Group(""))
	notificationHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envDurationSeconds(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		log.Printf("WARNING: invalid %s=%q, using default %ds", key, v, def)
	}
	return time.Duration(def) * time.Second
}

func envDurationMinutes(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
		log.Printf("WARNING: invalid %s=%q, using default %dm", key, v, def)
	}
	return time.Duration(def) * time.Minute
}
