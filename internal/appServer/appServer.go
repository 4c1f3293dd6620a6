// launching the server, cache, queues, postgres
package appServer

import (
	"context"
	"crypto/tls"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/config"
	"github.com/ds124wfegd/scribble-diffusion/internal/database"
	"github.com/ds124wfegd/scribble-diffusion/internal/database/memory"
	"github.com/ds124wfegd/scribble-diffusion/internal/database/postgres"
	redisCache "github.com/ds124wfegd/scribble-diffusion/internal/database/redis"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/kafka"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/processor"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/replicate"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/sse"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/storage"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/upload"
	"github.com/ds124wfegd/scribble-diffusion/internal/rabbitMQ"
	"github.com/ds124wfegd/scribble-diffusion/internal/reconciler"
	"github.com/ds124wfegd/scribble-diffusion/internal/service"
	"github.com/ds124wfegd/scribble-diffusion/internal/transport"
	pgConn "github.com/ds124wfegd/scribble-diffusion/pkg/postgres"
	redisConn "github.com/ds124wfegd/scribble-diffusion/pkg/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// infra holds optional backends; nil fields mean the backend is not available.
type infra struct {
	redis  *redis.Client
	db     *sql.DB
	rabbit *rabbitMQ.RabbitMQ
	kafka  kafka.Producer
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.rabbit != nil {
		i.rabbit.Close()
	}
	if i.db != nil {
		i.db.Close()
	}
	if i.redis != nil {
		i.redis.Close()
	}
}

func (i *infra) health() gin.H {
	status := gin.H{
		"redis":    "disabled",
		"postgres": "disabled",
		"rabbitmq": "disabled",
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if i.redis != nil {
		status["redis"] = connState(i.redis.Ping(ctx).Err())
	}
	if i.db != nil {
		status["postgres"] = connState(i.db.PingContext(ctx))
	}
	if i.rabbit != nil {
		status["rabbitmq"] = connState(i.rabbit.HealthCheck())
	}
	return status
}

func connState(err error) string {
	if err != nil {
		return "unavailable"
	}
	return "connected"
}

func connectInfra(cfg *config.Config) *infra {
	i := &infra{}

	if cfg.Redis.Host != "" {
		client, err := redisConn.NewRedisClient(&cfg.Redis)
		if err != nil {
			logrus.WithError(err).Warn("Redis unavailable, predictions are cached in memory")
		} else {
			i.redis = client
		}
	}

	if cfg.Database.Host != "" {
		db, err := pgConn.NewPostgresDB(&cfg.Database)
		if err != nil {
			logrus.WithError(err).Warn("PostgreSQL unavailable, scribble archive is disabled")
		} else if err := pgConn.RunMigrations(db); err != nil {
			logrus.WithError(err).Warn("Migrations failed, scribble archive is disabled")
			db.Close()
		} else {
			i.db = db
		}
	}

	if cfg.Rabbit.URL != "" || cfg.Rabbit.Host != "" {
		rmq, err := rabbitMQ.NewRabbitMQ(rabbitMQ.RabbitMQConfig{
			URL:       rabbitMQ.URL(cfg.Rabbit.URL, cfg.Rabbit.Username, cfg.Rabbit.Password, cfg.Rabbit.Host, cfg.Rabbit.Port),
			QueueName: cfg.Rabbit.QueueName,
		})
		if err != nil {
			logrus.WithError(err).Warn("RabbitMQ unavailable, server-side reconciliation is disabled")
		} else {
			i.rabbit = rmq
		}
	}

	i.kafka = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	return i
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(new(logrus.JSONFormatter))

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends := connectInfra(cfg)
	defer backends.close()

	var cache database.PredictionCache = memory.NewPredictionCache(cfg.App.CacheTTL)
	if backends.redis != nil {
		cache = redisCache.NewPredictionCache(backends.redis, cfg.App.CacheTTL)
	}

	var scribbleRepo database.ScribbleRepository
	if backends.db != nil {
		scribbleRepo = postgres.NewScribbleRepository(backends.db)
	}

	hub := sse.NewHub()
	go hub.Run(ctx)

	replicateClient := replicate.NewClient(replicate.Config{
		BaseURL:   cfg.Replicate.BaseURL,
		Token:     cfg.Replicate.APIToken,
		UserAgent: cfg.UserAgent(),
		Timeout:   cfg.Replicate.Timeout,
	})

	var (
		scheduler     service.Scheduler
		reconcileTask *reconciler.Scheduler
	)
	if backends.rabbit != nil {
		reconcileTask = reconciler.NewScheduler(backends.rabbit, reconciler.Config{
			InitialDelay: cfg.Rabbit.InitialDelay,
			MaxDelay:     cfg.Rabbit.MaxDelay,
			MaxAttempts:  cfg.Rabbit.MaxAttempts,
		})
		scheduler = reconcileTask
	}

	predictionService := service.NewPredictionService(replicateClient, cache, backends.kafka, hub, scheduler, service.PredictionServiceConfig{
		Version:     cfg.Replicate.Version,
		WebhookHost: cfg.WebhookHost(),
	})

	if backends.rabbit != nil {
		rec := reconciler.NewReconciler(backends.rabbit, reconcileTask, predictionService)
		if err := rec.Start(ctx); err != nil {
			logrus.WithError(err).Error("Failed to start reconciler")
		}
	}

	uploader, uploadsDir := newUploader(cfg)
	uploadService := service.NewUploadService(processor.NewScribbleProcessor(processor.DefaultMaxSide), uploader, cfg.Upload.MaxBytes)
	scribbleService := service.NewScribbleService(scribbleRepo)

	// base64 раздувает тело примерно на треть
	handlers := &transport.Handlers{
		Prediction: transport.NewPredictionHandler(predictionService, hub),
		Webhook:    transport.NewWebhookHandler(predictionService),
		Upload:     transport.NewUploadHandler(uploadService, cfg.Upload.MaxBytes*2),
		Scribble:   transport.NewScribbleHandler(scribbleService, cfg.App.BaseURL),
	}

	router := transport.InitRoutes(handlers, transport.RouteOptions{
		Templates:      cfg.App.Templates,
		UploadsDir:     uploadsDir,
		RequestTimeout: cfg.Replicate.Timeout + 5*time.Second,
		Health:         backends.health,
	})

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, router); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithFields(logrus.Fields{
		"addr":         cfg.GetServerAddress(),
		"webhook_host": cfg.WebhookHost(),
		"upload":       cfg.Upload.Backend,
	}).Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}

func newUploader(cfg *config.Config) (upload.Uploader, string) {
	if cfg.Upload.Backend == "local" {
		fs := storage.NewFileStorage(cfg.Upload.LocalDir)
		return upload.NewLocalUploader(fs, cfg.App.BaseURL), fs.Root()
	}

	return upload.NewUploadIOUploader(upload.UploadIOConfig{
		BaseURL:    cfg.Upload.BaseURL,
		AccountID:  cfg.Upload.AccountID,
		APIKey:     cfg.Upload.APIKey,
		AppName:    cfg.App.Name,
		AppVersion: cfg.App.Version,
		Timeout:    cfg.Upload.Timeout,
	}), ""
}
