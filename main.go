package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/gogotex/backend/collab-service/handlers"
	"github.com/gogotex/gogotex/backend/collab-service/internal/cache"
	"github.com/gogotex/gogotex/backend/collab-service/internal/config"
	"github.com/gogotex/gogotex/backend/collab-service/internal/database"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document/handler"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document/repository"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document/service"
	"github.com/gogotex/gogotex/backend/collab-service/internal/export"
	"github.com/gogotex/gogotex/backend/collab-service/internal/identity"
	"github.com/gogotex/gogotex/backend/collab-service/internal/storage"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/logger"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/metrics"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

var startTime = time.Now()

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.SetOutput(os.Stdout, cfg.Log.Pretty)
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(cors, gin.Logger(), gin.Recovery())

	// Redis backs the shared version cache and the distributed rate limiter.
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb, err = database.ConnectRedis(ctx, addr, cfg.Redis.Password, cfg.Redis.DB, 5*time.Second)
		if err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			rdb = nil
		} else {
			defer func() { _ = rdb.Close() }()
			logger.Infof("connected to Redis: %s", addr)
		}
	}

	versionCache, err := buildCache(cfg, rdb)
	if err != nil {
		logger.Fatalf("failed to create version cache: %v", err)
	}
	opts := service.Options{LockTTL: cfg.Lock.TTL, Cache: versionCache}

	var (
		svc         service.Service
		mongoClient *mongo.Client
		exportStore export.Store = export.NewMemoryStore()
	)
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		db := mongoClient.Database(cfg.MongoDB.Database)
		svc, err = service.NewMongoService(ctx, db, opts)
		if err != nil {
			logger.Fatalf("failed to initialize document store: %v", err)
		}
		exportStore = export.NewMongoStore(db)
		logger.Infof("using MongoDB database %q", cfg.MongoDB.Database)
	} else {
		logger.Warn("MONGODB_URI not set: documents are kept in memory")
		svc = service.New(repository.NewMemoryRepo(), opts)
	}

	var objects *storage.MinIOStorage
	var exporter handler.Exporter
	if cfg.MinIO.Enabled() {
		objects, err = storage.NewMinIOStorage(ctx, &cfg.MinIO)
		if err != nil {
			logger.Warnf("MinIO unavailable, exports disabled: %v", err)
			objects = nil
		} else {
			exporter = export.NewExporter(svc, objects, exportStore, nil, cfg.Export.URLTTL)
		}
	}

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		logger.Fatalf("identity: %v", err)
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when every configured dependency answers
	r.GET("/ready", func(c *gin.Context) {
		rctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := map[string]bool{"identity": verifier != nil}
		if mongoClient != nil {
			deps["mongo"] = mongoClient.Ping(rctx, nil) == nil
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = rdb != nil && rdb.Ping(rctx).Err() == nil
		}
		if cfg.MinIO.Enabled() {
			deps["minio"] = objects != nil && objects.Ready(rctx)
		}
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	api := r.Group("/api", middleware.AuthMiddleware(verifier))
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			api.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	handler.RegisterDocumentRoutes(api, svc, exporter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting collab service on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// cors sets permissive headers for the dev frontend and answers preflight requests.
func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
	c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusOK)
		return
	}
	c.Next()
}

// buildCache layers the Redis cache behind the process-local LRU when Redis is up.
func buildCache(cfg *config.Config, rdb *redis.Client) (cache.VersionCache, error) {
	local, err := cache.NewLRUCache(cfg.Cache.Size)
	if err != nil {
		return nil, err
	}
	if rdb == nil {
		return local, nil
	}
	return cache.Tiered{Local: local, Shared: cache.NewRedisCache(rdb, "", cfg.Cache.RedisTTL)}, nil
}

// buildVerifier prefers Keycloak, then a shared HMAC secret, then the
// unverified integration-test mode.
func buildVerifier(ctx context.Context, cfg *config.Config) (middleware.Verifier, error) {
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		issuer := cfg.Keycloak.URL
		if cfg.Keycloak.Realm != "" {
			issuer = identity.KeycloakIssuer(cfg.Keycloak.URL, cfg.Keycloak.Realm)
		}
		ver, err := identity.NewOIDCVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err == nil {
			logger.Infof("verifying tokens against %s", issuer)
			return ver, nil
		}
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	if cfg.JWT.Secret != "" {
		ver, err := identity.NewHMACVerifier(cfg.JWT.Secret)
		if err != nil {
			return nil, err
		}
		logger.Info("verifying HS256 tokens with JWT_SECRET")
		return ver, nil
	}
	if cfg.JWT.AllowInsecure {
		logger.Warn("enabling insecure token verifier (integration mode)")
		return identity.NewInsecureVerifier(), nil
	}
	return nil, fmt.Errorf("no token verifier configured: set KEYCLOAK_URL, JWT_SECRET or ALLOW_INSECURE_TOKEN")
}
