package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"guestbooker_go_backend/cmd/api/config"
	"guestbooker_go_backend/internal/api"
	"guestbooker_go_backend/internal/auth"
	"guestbooker_go_backend/internal/database"
	"guestbooker_go_backend/internal/services"
	"guestbooker_go_backend/internal/utils/broker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	genaiAPIKey := os.Getenv("GOOGLE_AI_STUDIO_API_KEY")
	if genaiAPIKey == "" {
		log.Fatal("GOOGLE_AI_STUDIO_API_KEY is not set in the environment")
	}

	ctx := context.Background()
	cfg := config.NewConfig()

	database.InitDB()
	database.InitRedis()

	// Initialize external services clients
	stripeService := services.NewStripeService(
		os.Getenv("STRIPE_PUBLIC_KEY"),
		os.Getenv("STRIPE_SECRET_KEY"),
		os.Getenv("STRIPE_WEBHOOK_SECRET"),
	)

	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(genaiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}
	defer genaiClient.Close()

	// Initialize internal services
	messageBroker := broker.NewBroker()
	usageService := services.NewUsageService(database.DB)
	researchCache := services.NewRedisResearchCache(database.Redis, cfg.CacheTTL)
	researchProvider := services.NewGeminiResearchProvider(genaiClient, cfg.ResearchModel)
	researchStore := services.NewResearchStoreDB(database.DB)
	showStore := services.NewShowStoreDB(database.DB)
	showService := services.NewShowService(showStore)
	userService := services.NewUserService(database.DB)

	researchService := services.NewResearchService(
		usageService,
		researchCache,
		researchProvider,
		researchStore,
		showService,
		messageBroker,
		cfg.ProviderTimeout,
		cfg.DefaultMaxResults,
		cfg.MaxResultsCap,
	)

	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173" // Default to your local frontend
	}

	// CORS middleware configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(allowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r, researchService, usageService, showService, stripeService, userService, messageBroker)
	auth.SetupRoutes(r, userService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
