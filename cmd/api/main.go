// cmd/api/main.go
// Main entry point for the application
// This file bootstraps all components and starts the server

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Internal packages
	"github.com/numbay/numbay-backend/internal/catalog"
	"github.com/numbay/numbay-backend/internal/common/database"
	"github.com/numbay/numbay-backend/internal/config"
	"github.com/numbay/numbay-backend/internal/numbers"
	"github.com/numbay/numbay-backend/internal/provider"
	"github.com/numbay/numbay-backend/internal/realtime"
)

func main() {
	// Enable detailed logging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting Numbay Virtual Number API")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load configuration
	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()
	log.Printf("✅ Configuration loaded")

	// 3. Validate configuration
	log.Println("\n✔️  Step 3: Validating configuration...")
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Println("✅ Configuration is valid")

	// 4. Connect to Redis (optional, used as the catalog cache)
	log.Println("\n📮 Step 4: Connecting to Redis...")
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable (%v), continuing with in-process caching", err)
		} else {
			redisClient = client
			defer redisClient.Close()
			log.Println("✅ Connected to Redis successfully")
		}
	} else {
		log.Println("⚠️  Redis URL not configured, using in-process caching")
	}

	// 5. Initialize provider registry
	log.Println("\n📡 Step 5: Initializing provider registry...")
	registry := provider.NewRegistry(cfg)

	for _, status := range registry.List() {
		if status.Configured {
			log.Printf("   ✅ Vendor %s configured", status.ID)
		} else {
			log.Printf("   ⚠️  Vendor %s not configured", status.ID)
		}
	}

	if cfg.DefaultProvider != "" {
		if err := registry.Select(cfg.DefaultProvider); err != nil {
			log.Fatal("❌ Failed to select default provider:", err)
		}
		log.Printf("   ✅ Default provider: %s", cfg.DefaultProvider)
	}
	log.Println("✅ Provider registry initialized")

	// 6. Initialize number store
	log.Println("\n🗄️  Step 6: Initializing number store...")
	var store numbers.Store
	switch cfg.StorageBackend {
	case "postgres":
		pgStore, err := numbers.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("❌ Failed to connect to PostgreSQL:", err)
		}
		defer pgStore.Close()
		store = pgStore
		log.Println("✅ Using PostgreSQL number store")
	default:
		store = numbers.NewMemoryStore()
		log.Println("✅ Using in-memory number store")
	}

	// 7. Start realtime hub
	log.Println("\n📨 Step 7: Starting realtime hub...")
	hub := realtime.NewHub()
	go hub.Run()
	log.Println("✅ Realtime hub started")

	// 8. Initialize number lifecycle manager
	log.Println("\n📱 Step 8: Initializing number lifecycle manager...")
	numbersService := numbers.NewService(registry, store, hub, &numbers.Config{
		Lifetime:          cfg.NumberLifetime,
		PollInterval:      cfg.PollInterval,
		VendorTimeout:     cfg.VendorTimeout,
		SweepInterval:     cfg.SweepInterval,
		TerminalRetention: cfg.TerminalRetention,
	})

	if cfg.StorageBackend == "postgres" {
		log.Println("   - Restoring live numbers from storage...")
		if err := numbersService.Restore(context.Background()); err != nil {
			log.Printf("⚠️  Warning: restore failed: %v", err)
		}
	}

	numbersHandler := numbers.NewHandler(numbersService)
	log.Println("✅ Number lifecycle manager initialized")

	// 9. Initialize catalog
	log.Println("\n💰 Step 9: Initializing catalog...")
	priceCache := catalog.NewPriceCache(redisClient, cfg.CatalogCacheTTL)
	catalogService := catalog.NewService(registry, priceCache)
	catalogHandler := catalog.NewHandler(catalogService)
	log.Println("✅ Catalog initialized")

	// 10. Setup routes
	log.Println("\n🛣️  Step 10: Setting up routes...")
	router := mux.NewRouter()

	// Health check and metrics
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// WebSocket endpoint for realtime OTP updates
	router.HandleFunc("/ws", realtime.HandleWebSocket(hub)).Methods("GET")

	numbers.RegisterRoutes(router, numbersHandler)
	log.Println("   ✅ Number routes registered")

	provider.RegisterRoutes(router, provider.NewHandler(registry))
	log.Println("   ✅ Provider routes registered")

	catalog.RegisterRoutes(router, catalogHandler)
	log.Println("   ✅ Catalog routes registered")

	// Add middleware
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	// 11. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("\n========================================")
		log.Printf("🚀 Server starting on http://localhost%s", srv.Addr)
		log.Printf("🌍 Environment: %s", cfg.Environment)
		log.Println("========================================")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n⚠️  Shutdown signal received...")

	// Graceful shutdown: stop the push hub first so no events are queued
	// while the lifecycle manager winds down
	log.Println("   - Shutting down realtime hub...")
	hub.Shutdown()

	log.Println("   - Shutting down number lifecycle manager...")
	numbersService.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited gracefully")
}

var startTime = time.Now()

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// loggingMiddleware logs all requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		log.Printf("← %s %s [%d] %v", r.Method, r.RequestURI, wrapped.statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so the websocket upgrade
// still works behind the logging middleware
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
