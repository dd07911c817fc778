// Package main runs the interview session gateway with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	webrtc "github.com/pion/webrtc/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mocknhire/interview-gateway/config"
	"github.com/mocknhire/interview-gateway/internal/artifacts"
	"github.com/mocknhire/interview-gateway/internal/auth"
	"github.com/mocknhire/interview-gateway/internal/gateway"
	"github.com/mocknhire/interview-gateway/internal/interview"
	"github.com/mocknhire/interview-gateway/internal/middleware"
	"github.com/mocknhire/interview-gateway/internal/report"
	"github.com/mocknhire/interview-gateway/pkg/database"
	"github.com/mocknhire/interview-gateway/pkg/events"
	"github.com/mocknhire/interview-gateway/pkg/redis"
	"github.com/mocknhire/interview-gateway/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	// Monitoring sink is best-effort; the gateway runs without Redis.
	var sink events.Sink = events.NopSink{}
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, monitoring events disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		sink = rdb.Sink()
	}

	s3Cfg := artifacts.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		VideosBucket:    cfg.AWS.VideosBucket,
		AnswersBucket:   cfg.AWS.AnswersBucket,
	}
	store, err := artifacts.NewS3Store(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}
	uploader := artifacts.NewUploader(store, store.VideosBucket(), store.AnswersBucket(), logger)

	backend := interview.NewClient(cfg.Interview.BaseURL, time.Duration(cfg.Interview.TimeoutSeconds)*time.Second, logger)
	reportRepo := report.NewRepository(pool)
	reportHandler := report.NewHandler(reportRepo, logger)
	tokens := auth.NewTokenService(cfg.Token.Secret)

	iceServers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEUrls))
	for _, u := range cfg.WebRTC.ICEUrls {
		if u != "" {
			iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{u}})
		}
	}

	wsHandler := gateway.NewHandler(tokens, iceServers, backend, uploader, reportRepo, reportRepo, sink, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("")
	api.Use(middleware.SessionToken(tokens))
	{
		api.GET("/sessions/:id/report", reportHandler.GetBySession)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", wsHandler.ServeWs())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("gateway listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
