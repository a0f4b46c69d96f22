package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohamedkhairy/coin-alerts/internal/alerts"
	"github.com/mohamedkhairy/coin-alerts/internal/api"
	"github.com/mohamedkhairy/coin-alerts/internal/config"
	"github.com/mohamedkhairy/coin-alerts/internal/pricing"
	"github.com/mohamedkhairy/coin-alerts/internal/watcher"
	"github.com/mohamedkhairy/coin-alerts/internal/wsgateway"
	"github.com/mohamedkhairy/coin-alerts/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// MVP: Allow all origins
		// In production, validate origin
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting coin alerts watcher",
		logger.Int("port", cfg.API.Port),
		logger.Duration("poll_interval", cfg.Watcher.PollInterval),
		logger.String("cache_backend", cfg.Pricing.CacheBackend),
		logger.String("store_backend", cfg.StoreBackend),
	)

	// Initialize alert store
	var store alerts.Store
	switch cfg.StoreBackend {
	case "postgres":
		pgStore, err := alerts.NewPostgresStore(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize Postgres alert store",
				logger.ErrorField(err),
			)
		}
		store = pgStore
	default:
		store = alerts.NewMemoryStore()
	}
	defer store.Close()

	// Initialize price cache
	var cache pricing.PriceCache
	switch cfg.Pricing.CacheBackend {
	case "redis":
		redisCache, err := pricing.NewRedisPriceCache(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to initialize Redis price cache",
				logger.ErrorField(err),
			)
		}
		defer redisCache.Close()
		cache = redisCache
	default:
		cache = pricing.NewMemoryPriceCache()
	}

	// Initialize upstream price fetcher
	fetcher := pricing.NewCoinGeckoFetcher(
		cfg.Pricing.BaseURL,
		cfg.Pricing.QuoteCurrency,
		cfg.Pricing.FetchTimeout,
	)

	// Initialize auth manager
	authManager := wsgateway.NewAuthManager(cfg.WSGateway.JWTSecret)

	// Initialize WebSocket hub
	hub := wsgateway.NewHub(cfg.WSGateway, store)
	if err := hub.Start(); err != nil {
		logger.Fatal("Failed to start WebSocket hub",
			logger.ErrorField(err),
		)
	}
	defer hub.Stop()

	// Initialize the watcher scheduler
	scheduler := watcher.NewScheduler(
		watcher.SchedulerConfig{
			PollInterval: cfg.Watcher.PollInterval,
			FetchTimeout: cfg.Pricing.FetchTimeout,
			CacheTTL:     cfg.Pricing.CacheTTL,
			WatchAssets:  cfg.Watcher.WatchAssets,
		},
		store,
		cache,
		fetcher,
		hub,
	)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start watcher scheduler",
			logger.ErrorField(err),
		)
	}
	defer scheduler.Stop()

	// Set up HTTP server
	router := mux.NewRouter()

	// WebSocket endpoint
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, authManager, w, r, cfg.WSGateway)
	})

	// REST API
	alertHandler := api.NewAlertHandler(store)
	priceHandler := api.NewPriceHandler(cache)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(mux.MiddlewareFunc(api.ChainMiddleware(
		api.RecoveryMiddleware(),
		api.LoggingMiddleware(),
		api.CORSMiddleware(),
	)))
	apiRouter.HandleFunc("/alerts", alertHandler.CreateAlert).Methods("POST")
	apiRouter.HandleFunc("/alerts", alertHandler.ListAlerts).Methods("GET")
	apiRouter.HandleFunc("/alerts/{id}", alertHandler.GetAlert).Methods("GET")
	apiRouter.HandleFunc("/alerts/{id}/enabled", alertHandler.SetEnabled).Methods("PUT")
	apiRouter.HandleFunc("/alerts/{id}/history", alertHandler.ListHistory).Methods("GET")
	apiRouter.HandleFunc("/price/{asset}", priceHandler.GetPrice).Methods("GET")

	// Health check endpoints
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if scheduler.IsRunning() {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
		}
	})

	router.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	})

	// Stats endpoint
	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"watcher": scheduler.GetStats(),
			"hub":     hub.GetStats(),
		})
	})

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Start HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server",
			logger.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server",
				logger.ErrorField(err),
			)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down coin alerts watcher")

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down HTTP server",
			logger.ErrorField(err),
		)
	}

	logger.Info("Coin alerts watcher stopped")
}

// handleWebSocket upgrades an HTTP request and registers the connection
func handleWebSocket(hub *wsgateway.Hub, authManager *wsgateway.AuthManager, w http.ResponseWriter, r *http.Request, cfg config.WSGatewayConfig) {
	// Check max connections
	if hub.ActiveConnections() >= cfg.MaxConnections {
		logger.Warn("Max connections reached, rejecting new connection",
			logger.Int("max_connections", cfg.MaxConnections),
		)
		http.Error(w, "Max connections reached", http.StatusServiceUnavailable)
		return
	}

	// Extract and validate JWT token
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		// Try query parameter as fallback
		authHeader = r.URL.Query().Get("token")
		if authHeader != "" {
			authHeader = "Bearer " + authHeader
		}
	}

	var ownerID string
	tokenString, err := authManager.ExtractTokenFromHeader(authHeader)
	if err != nil {
		// Unauthenticated clients fall back to the shared default owner
		logger.Debug("No token provided, using default owner",
			logger.ErrorField(err),
		)
		ownerID = wsgateway.DefaultOwnerID
	} else {
		ownerID, err = authManager.ValidateToken(tokenString)
		if err != nil {
			logger.Warn("Invalid token, rejecting connection",
				logger.ErrorField(err),
			)
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}
	}

	// Upgrade connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade connection",
			logger.ErrorField(err),
		)
		return
	}

	connectionID := uuid.New().String()
	wsConn := wsgateway.NewConnection(connectionID, ownerID, conn)
	hub.Register(wsConn)

	logger.Info("WebSocket connection established",
		logger.String("connection_id", connectionID),
		logger.String("owner_id", ownerID),
		logger.String("remote_addr", r.RemoteAddr),
	)
}
