package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"rallio-queue/internal/auth"
	"rallio-queue/internal/config"
	"rallio-queue/internal/db"
	"rallio-queue/internal/elo"
	"rallio-queue/internal/eventbus"
	"rallio-queue/internal/handlers"
	"rallio-queue/internal/middleware"
	"rallio-queue/internal/notify"
	"rallio-queue/internal/services"
	"rallio-queue/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Load configuration
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting queue server in %s mode", cfg.Environment)

	// Connect to MongoDB
	mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongodb.Close(ctx)
	}()

	log.Printf("Connected to MongoDB database: %s", cfg.MongoDB.Database)

	// Auth: validate tokens minted by the identity provider
	jwtService := auth.NewJWTService(cfg.JWT.AccessSecret)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Stop()

	// WebSocket hub and cross-instance event bus
	wsHandler := handlers.NewWebSocketHandler()
	bus := eventbus.New(mongodb.QueueEvents(), wsHandler.BroadcastSessionChanged)
	bus.Start()
	defer bus.Stop()

	// Persistence and services
	mongoStore := store.NewMongo(mongodb)
	notifier := notify.NewService(mongodb)
	calculator := elo.NewCalculatorWithK(cfg.Queue.KFactor)

	queueService := services.NewQueueService(mongoStore, bus,
		time.Duration(cfg.Queue.RejoinCooldownMinutes)*time.Minute,
		time.Duration(cfg.Queue.WaitPerSlotMinutes)*time.Minute)
	sessionService := services.NewSessionService(mongoStore, notifier, bus)
	completionService := services.NewCompletionService(mongoStore, calculator)
	matchService := services.NewMatchService(mongoStore, completionService, notifier, bus)
	ledgerService := services.NewLedgerService(mongoStore, notifier, bus)
	playerService := services.NewPlayerService(mongoStore)

	cleanup := services.NewStaleSessionCleanupService(mongoStore, sessionService)
	cleanup.Start()
	defer cleanup.Stop()

	// Handlers
	queueHandler := handlers.NewQueueHandler(queueService)
	sessionHandler := handlers.NewSessionHandler(mongodb, sessionService)
	matchHandler := handlers.NewMatchHandler(mongodb, matchService)
	paymentHandler := handlers.NewPaymentHandler(mongodb, ledgerService)
	leaderboardHandler := handlers.NewLeaderboardHandler(mongoStore)
	playerHandler := handlers.NewPlayerHandler(playerService)

	// Set up router
	router := mux.NewRouter()
	router.Use(middleware.SecurityHeaders())

	// WebSocket session watch
	router.HandleFunc("/ws/sessions/{sessionId}",
		rateLimiter.RateLimitHandler(middleware.WebSocketUpgradeLimit, middleware.GetClientIP, wsHandler.HandleWebSocket))

	// API routes (all authenticated)
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.RequireAuth)

	byUser := func(r *http.Request) string {
		if caller, ok := middleware.GetCallerFromContext(r.Context()); ok {
			return caller.UserID
		}
		return middleware.GetClientIP(r)
	}

	// Sessions
	api.HandleFunc("/sessions",
		rateLimiter.RateLimitHandler(middleware.SessionCreationLimit, byUser, sessionHandler.Create)).Methods("POST")
	api.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}/pause", sessionHandler.Pause).Methods("POST")
	api.HandleFunc("/sessions/{sessionId}/resume", sessionHandler.Resume).Methods("POST")
	api.HandleFunc("/sessions/{sessionId}/close", sessionHandler.Close).Methods("POST")
	api.HandleFunc("/sessions/{sessionId}/summary", sessionHandler.Summary).Methods("GET")
	api.HandleFunc("/sessions/{sessionId}/participants/{userId}", sessionHandler.RemoveParticipant).Methods("DELETE")

	// Queue membership
	api.HandleFunc("/sessions/{sessionId}/queue",
		rateLimiter.RateLimitHandler(middleware.QueueActionLimit, byUser, queueHandler.Join)).Methods("POST")
	api.HandleFunc("/sessions/{sessionId}/queue/leave",
		rateLimiter.RateLimitHandler(middleware.QueueActionLimit, byUser, queueHandler.Leave)).Methods("POST")
	api.HandleFunc("/sessions/{sessionId}/queue/position", queueHandler.Position).Methods("GET")

	// Matches
	api.HandleFunc("/sessions/{sessionId}/matches",
		rateLimiter.RateLimitHandler(middleware.MatchAssignLimit, byUser, matchHandler.Assign)).Methods("POST")
	api.HandleFunc("/matches/{matchId}/start", matchHandler.Start).Methods("POST")
	api.HandleFunc("/matches/{matchId}/score",
		rateLimiter.RateLimitHandler(middleware.ScoreRecordLimit, byUser, matchHandler.RecordScore)).Methods("POST")
	api.HandleFunc("/matches/{matchId}/cancel", matchHandler.Cancel).Methods("POST")
	api.HandleFunc("/matches/active", matchHandler.Active).Methods("GET")

	// Payments
	api.HandleFunc("/participants/{participantId}/settle",
		rateLimiter.RateLimitHandler(middleware.PaymentActionLimit, byUser, paymentHandler.Settle)).Methods("POST")
	api.HandleFunc("/participants/{participantId}/mark-paid",
		rateLimiter.RateLimitHandler(middleware.PaymentActionLimit, byUser, paymentHandler.MarkPaid)).Methods("POST")
	api.HandleFunc("/participants/{participantId}/waive",
		rateLimiter.RateLimitHandler(middleware.PaymentActionLimit, byUser, paymentHandler.WaiveFee)).Methods("POST")

	// Players
	api.HandleFunc("/players/skill", playerHandler.DeclareSkill).Methods("PUT")

	// Leaderboard
	api.HandleFunc("/leaderboard", leaderboardHandler.GetLeaderboard).Methods("GET")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Frontend.URL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
