package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fitQuestAPI/database"
	"fitQuestAPI/handlers"
	"fitQuestAPI/internal/clock"
	"fitQuestAPI/internal/llm"
	"fitQuestAPI/internal/notification"
	"fitQuestAPI/middleware"
	"fitQuestAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	streakService       *services.StreakService
	rewardService       *services.RewardService
	calcService         *services.RewardCalculatorService
	badgeService        *services.BadgeService
	challengeService    *services.ChallengeService
	activityService     *services.ActivityService
	notificationService *services.NotificationService
	fcmService          *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	dbPool, err = database.Connect(ctx, dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	log.Println("Successfully connected to database")

	if err := database.InitializeTables(ctx, dbPool); err != nil {
		log.Fatal("Failed to initialize tables:", err)
	}

	clk := clock.System()

	var llmClient llm.Client
	httpClient, err := llm.NewHTTPClientFromEnv()
	if err != nil {
		log.Printf("Warning: LLM client not configured, challenge generation will use the fallback pool: %v", err)
	} else {
		llmClient = httpClient
		log.Println("LLM client initialized successfully")
	}

	notificationService = services.NewNotificationService(dbPool)
	userService = services.NewUserService(dbPool)
	streakService = services.NewStreakService(dbPool, clk)
	rewardService = services.NewRewardService(dbPool, clk, streakService)
	calcService = services.NewRewardCalculatorService(dbPool, clk, rewardService)
	badgeService = services.NewBadgeService(dbPool, clk, streakService, rewardService)
	challengeService = services.NewChallengeService(dbPool, clk, llmClient, rewardService)
	activityService = services.NewActivityService(dbPool, clk, streakService, rewardService, calcService, badgeService)
	activityService.SetNotifier(notificationService)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	userHandler := handlers.NewUserHandler(userService)
	activityHandler := handlers.NewActivityHandler(activityService, userService)
	rewardsHandler := handlers.NewRewardsHandler(rewardService, calcService, streakService, userService)
	badgeHandler := handlers.NewBadgeHandler(badgeService, userService)
	challengeHandler := handlers.NewChallengeHandler(challengeService, userService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, userService)
	webhookHandler := handlers.NewWebhookHandler(userService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "fitQuest-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// API v1, everything below requires a Clerk session.
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.ClerkAuthMiddleware)

	// Profile
	api.HandleFunc("/user/profile", userHandler.GetProfile).Methods("GET")
	api.HandleFunc("/user/profile", userHandler.UpdateProfile).Methods("PUT")
	api.HandleFunc("/user/account", userHandler.DeleteAccount).Methods("DELETE")

	// Activity logging
	api.HandleFunc("/activity/workouts", activityHandler.LogWorkout).Methods("POST")
	api.HandleFunc("/activity/workouts", activityHandler.GetWorkouts).Methods("GET")
	api.HandleFunc("/activity/water", activityHandler.LogWater).Methods("POST")
	api.HandleFunc("/activity/sleep", activityHandler.LogSleep).Methods("POST")
	api.HandleFunc("/activity/steps", activityHandler.LogSteps).Methods("POST")
	api.HandleFunc("/activity/records", activityHandler.LogPersonalRecord).Methods("POST")
	api.HandleFunc("/activity/records", activityHandler.GetPersonalRecords).Methods("GET")
	api.HandleFunc("/activity/signin", activityHandler.DailySignin).Methods("POST")
	api.HandleFunc("/activity/form-review", activityHandler.FormReview).Methods("POST")
	api.HandleFunc("/activity/today", activityHandler.GetToday).Methods("GET")
	api.HandleFunc("/activity/calendar/{year}/{month}", activityHandler.GetCalendar).Methods("GET")
	api.HandleFunc("/activity/stats", activityHandler.GetStats).Methods("GET")

	// Rewards, levels, streaks
	api.HandleFunc("/rewards/state", rewardsHandler.GetState).Methods("GET")
	api.HandleFunc("/rewards/level", rewardsHandler.GetProgress).Methods("GET")
	api.HandleFunc("/rewards/history", rewardsHandler.GetHistory).Methods("GET")
	api.HandleFunc("/rewards/catalog", rewardsHandler.GetCatalog).Methods("GET")
	api.HandleFunc("/rewards/recalculate", rewardsHandler.Recalculate).Methods("POST")
	api.HandleFunc("/rewards/{key}/claim", rewardsHandler.Claim).Methods("POST")
	api.HandleFunc("/streaks", rewardsHandler.GetStreaks).Methods("GET")
	api.HandleFunc("/streaks/{type}", rewardsHandler.GetStreak).Methods("GET")

	// Badges
	api.HandleFunc("/badges", badgeHandler.ListBadges).Methods("GET")
	api.HandleFunc("/badges/me", badgeHandler.GetUserBadges).Methods("GET")
	api.HandleFunc("/badges/evaluate", badgeHandler.Evaluate).Methods("POST")

	// Challenges
	api.HandleFunc("/challenges/generate", challengeHandler.Generate).Methods("POST")
	api.HandleFunc("/challenges/accept", challengeHandler.Accept).Methods("POST")
	api.HandleFunc("/challenges/decline", challengeHandler.Decline).Methods("POST")
	api.HandleFunc("/challenges/refresh", challengeHandler.Refresh).Methods("POST")
	api.HandleFunc("/challenges/active", challengeHandler.ListActive).Methods("GET")
	api.HandleFunc("/challenges/completed", challengeHandler.ListCompleted).Methods("GET")
	api.HandleFunc("/challenges/feedback", challengeHandler.GetFeedbackHistory).Methods("GET")
	api.HandleFunc("/challenges/{id}/complete", challengeHandler.Complete).Methods("POST")
	api.HandleFunc("/challenges/{id}/progress", challengeHandler.IncrementProgress).Methods("POST")
	api.HandleFunc("/challenges/{id}", challengeHandler.Delete).Methods("DELETE")

	// Notifications
	api.HandleFunc("/notifications", notificationHandler.List).Methods("GET")
	api.HandleFunc("/notifications/read-all", notificationHandler.MarkAllRead).Methods("POST")
	api.HandleFunc("/notifications/{id}/read", notificationHandler.MarkRead).Methods("POST")
	api.HandleFunc("/notifications/devices", notificationHandler.RegisterDevice).Methods("POST")
	api.HandleFunc("/notifications/devices/{token}", notificationHandler.UnregisterDevice).Methods("DELETE")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
