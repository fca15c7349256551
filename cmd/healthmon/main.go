package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthmon/internal/config"
	"healthmon/internal/database"
	httpapi "healthmon/internal/http"
	"healthmon/internal/logger"
	mqttingest "healthmon/internal/mqtt"
	"healthmon/internal/notify"
	"healthmon/internal/predictor"
	"healthmon/internal/repository"
	"healthmon/internal/service"
	"healthmon/internal/staging"
	"healthmon/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "healthmon")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting healthmon service",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.String("predictor_url", cfg.Predictor.URL),
		zap.Duration("staging_ttl", cfg.Staging.TTL),
		zap.Bool("mqtt_enabled", cfg.MQTT.Enabled),
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	kv := store.NewRedisKV(redisClient)
	vitalsStaging := staging.NewVitalsStaging(kv, cfg.Staging.TTL, zapLogger)
	predictorClient := predictor.NewClient(cfg.Predictor.URL, cfg.Predictor.Timeout, zapLogger)
	recordsRepo := repository.NewPostgresHealthRecordsRepository(db)
	usersRepo := repository.NewPostgresUsersRepository(db)
	publisher := notify.NewRedisPublisher(redisClient, zapLogger)
	alertPolicy := service.NewAlertPolicy(cfg.Alert.HighRiskLabels, cfg.Alert.NormalValues)

	ingestion := service.NewIngestionService(
		vitalsStaging,
		predictorClient,
		recordsRepo,
		usersRepo,
		publisher,
		alertPolicy,
		zapLogger,
	)

	sessions := httpapi.NewRedisSessionResolver(kv)
	auth := httpapi.NewAuthMiddleware(sessions, zapLogger)
	sensor := httpapi.NewSensorHandler(ingestion, zapLogger)
	records := httpapi.NewHealthDataHandler(recordsRepo, zapLogger)

	router := httpapi.NewRouter(zapLogger)
	router.RegisterHealthDataRoutes(auth, sensor, records)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 可选：MQTT 设备直连采集通道
	var mqttConsumer *mqttingest.VitalsConsumer
	if cfg.MQTT.Enabled {
		mqttClient, err := mqttingest.NewClient(&cfg.MQTT)
		if err != nil {
			zapLogger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer mqttClient.Disconnect()

		mqttConsumer = mqttingest.NewVitalsConsumer(&cfg.MQTT, mqttClient, ingestion, zapLogger)
		go func() {
			if err := mqttConsumer.Start(ctx); err != nil {
				zapLogger.Error("MQTT consumer stopped with error", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if mqttConsumer != nil {
		mqttConsumer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
