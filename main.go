package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"avatarShopAPI/handlers"
	"avatarShopAPI/internal/kvstore"
	"avatarShopAPI/internal/notification"
	"avatarShopAPI/internal/storage"
	"avatarShopAPI/middleware"
	"avatarShopAPI/services"
)

var (
	dbPool           *pgxpool.Pool
	store            *storage.PostgresStore
	celebrationStore *kvstore.SQLiteStore
	accessoryService *services.AccessoryService
	pointsService    *services.PointsService
	progressService  *services.ProgressService
	unlockNotifier   *services.UnlockNotifier
	cacheSyncer      *services.CacheSyncer
	reconciler       *services.Reconciler
)

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}
	log.Println("Successfully connected to Postgres")

	store = storage.NewPostgresStore(dbPool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	celebrationPath := os.Getenv("CELEBRATION_DB_PATH")
	if celebrationPath == "" {
		celebrationPath = "celebrations.db"
	}
	celebrationStore, err = kvstore.Open(celebrationPath)
	if err != nil {
		log.Fatal("Failed to open celebration store:", err)
	}
	log.Printf("Celebration flags stored in %s", celebrationPath)

	middleware.InitPrometheus(prometheus.DefaultRegisterer)
	services.RegisterMetrics(prometheus.DefaultRegisterer)

	cacheSyncer = services.NewCacheSyncer(store,
		envInt("CACHE_SYNC_WORKERS", 2),
		envDuration("CACHE_SYNC_TIMEOUT", 5*time.Second))

	fcmService, err := notification.NewFCMService(ctx, "./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM, unlock pushes disabled: %v", err)
	} else {
		unlockNotifier = services.NewUnlockNotifier(fcmService, celebrationStore)
		log.Println("FCM Push Provider initialized successfully")
	}

	accessoryService = services.NewAccessoryService(store, cacheSyncer)
	pointsService = services.NewPointsService(store)
	progressService = services.NewProgressService(store, unlockNotifier)

	reconciler = services.NewReconciler(store)
	if err := reconciler.Start(envDuration("RECONCILE_INTERVAL", 15*time.Minute)); err != nil {
		log.Fatal("Failed to start reconciler:", err)
	}
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
		if err := celebrationStore.Close(); err != nil {
			log.Printf("Failed to close celebration store: %v", err)
		}
	}()

	accessoryHandler := handlers.NewAccessoryHandler(accessoryService, progressService)
	pointsHandler := handlers.NewPointsHandler(pointsService)
	progressHandler := handlers.NewProgressHandler(progressService)
	celebrationHandler := handlers.NewCelebrationHandler(celebrationStore)

	r := mux.NewRouter()

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	limiter := middleware.NewRateLimiter(5, 30)
	go limiter.CleanupVisitors(limiterCtx)

	r.Use(limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		if err := celebrationStore.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "celebration store unavailable"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "avatar-shop-api"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/accessories", accessoryHandler.ListCatalog).Methods("GET")
	protected.HandleFunc("/accessories/status", accessoryHandler.CatalogStatus).Methods("GET")

	protected.HandleFunc("/user/accessories", accessoryHandler.ListOwned).Methods("GET")
	protected.HandleFunc("/user/accessories/equipped", accessoryHandler.ListEquipped).Methods("GET")
	protected.HandleFunc("/user/accessories/purchase", accessoryHandler.Purchase).Methods("POST")
	protected.HandleFunc("/user/accessories/equip", accessoryHandler.Equip).Methods("POST")
	protected.HandleFunc("/user/accessories/unequip", accessoryHandler.Unequip).Methods("POST")
	protected.HandleFunc("/user/accessories/metadata", accessoryHandler.UpdateMetadata).Methods("PUT")

	protected.HandleFunc("/user/points", pointsHandler.GetBalance).Methods("GET")
	protected.HandleFunc("/user/points/transactions", pointsHandler.ListTransactions).Methods("GET")

	protected.HandleFunc("/user/progress", progressHandler.GetProgress).Methods("GET")
	protected.HandleFunc("/user/progress/unlocks", progressHandler.CheckUnlocks).Methods("POST")

	protected.HandleFunc("/user/celebrations/boss/{nodeId}", celebrationHandler.ShouldShowBoss).Methods("GET")
	protected.HandleFunc("/user/celebrations/boss/{nodeId}", celebrationHandler.MarkBossShown).Methods("POST")
	protected.HandleFunc("/user/celebrations/levels/last-seen", celebrationHandler.GetLastSeenLevel).Methods("GET")
	protected.HandleFunc("/user/celebrations/levels/last-seen", celebrationHandler.SetLastSeenLevel).Methods("PUT")
	protected.HandleFunc("/user/celebrations/levels/{level:[0-9]+}", celebrationHandler.LevelCelebrated).Methods("GET")
	protected.HandleFunc("/user/celebrations/levels/{level:[0-9]+}", celebrationHandler.MarkLevelCelebrated).Methods("POST")
	protected.HandleFunc("/user/celebrations/accessories", celebrationHandler.FilterUnseenAccessories).Methods("POST")
	protected.HandleFunc("/celebrations/tier", celebrationHandler.DetermineTier).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if err := reconciler.Shutdown(); err != nil {
		log.Printf("Reconciler shutdown error: %v", err)
	}
	cacheSyncer.Stop()
	unlockNotifier.Wait()

	log.Println("Server shutdown complete")
}
