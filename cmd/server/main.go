package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/internal/infrastructure/database"
	"github.com/docuflow/backend/internal/infrastructure/persistence"
	"github.com/docuflow/backend/internal/interfaces/middleware"
	"github.com/docuflow/backend/internal/interfaces/rest"
	"github.com/docuflow/backend/pkg/auth"
	"github.com/docuflow/backend/pkg/constants"
)

func main() {
	// Load .env if present; real deployments inject the environment directly
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️  No .env file found, using environment variables")
	}

	port := os.Getenv(constants.EnvPort)
	if port == "" {
		port = "3001"
	}

	// Initialize database connection
	db, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	if err := persistence.InitializeSchema(db.DB()); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Initialize service manager
	svcMgr, err := services.NewServiceManager(db)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	log.Println("🔧 Service manager initialized")

	// Ensure the bootstrap admin exists so a fresh deployment can log in
	if err := seedAdminUser(svcMgr.Identity); err != nil {
		log.Printf("⚠️  Warning: Failed to seed admin user: %v", err)
	}

	// Start background workers (outbox relay + escalation sweep)
	svcMgr.StartWorkers()
	log.Println("⚙️  Background workers started")

	// Create Gin router
	router := gin.Default()
	router.Use(middleware.Cors())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"server": "golang",
		})
	})

	// Initialize handlers
	authHandler := rest.NewAuthHandler(svcMgr.Auth)
	workflowHandler := rest.NewWorkflowHandler(svcMgr.Templates)
	instanceHandler := rest.NewInstanceHandler(svcMgr.Orchestrator)
	statsHandler := rest.NewStatsHandler(svcMgr.Stats)

	// Initialize middleware
	requireAuth := middleware.RequireAuth(svcMgr.Auth)
	requireAdmin := middleware.RequireAdmin()

	// API routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)

		workflows := api.Group("/workflows")
		workflows.Use(requireAuth)
		{
			workflows.GET("", workflowHandler.List)
			workflows.GET("/:id", workflowHandler.Get)
			workflows.GET("/:id/steps", workflowHandler.GetSteps)
			workflows.POST("", requireAdmin, workflowHandler.Create)
			workflows.PATCH("/:id/status", requireAdmin, workflowHandler.SetStatus)
		}

		instances := api.Group("/workflow-instances")
		instances.Use(requireAuth)
		{
			instances.POST("", instanceHandler.Start)
			instances.GET("/:id", instanceHandler.Get)
			instances.POST("/:id/approve", instanceHandler.Approve)
			instances.POST("/:id/reject", instanceHandler.Reject)
			instances.POST("/:id/cancel", instanceHandler.Cancel)
		}

		api.GET("/pending-approvals", requireAuth, instanceHandler.GetPending)
		api.GET("/workflow-stats", requireAuth, statsHandler.GetStats)
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Server listening on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then drain workers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	svcMgr.StopWorkers()
	log.Println("👋 Server stopped")
}

// seedAdminUser creates the default administrator on first boot. The password
// comes from ADMIN_PASSWORD so deployments never ship a hardcoded credential.
func seedAdminUser(identity *persistence.IdentityRepository) error {
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	return identity.EnsureUser(context.Background(), persistence.IdentityUser{
		ID:           "user-admin",
		Name:         "Administrator",
		Email:        "admin@docuflow.local",
		PasswordHash: hash,
		IsAdmin:      true,
	})
}
