// consumes prediction events and archives succeeded scribbles
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ds124wfegd/scribble-diffusion/config"
	"github.com/ds124wfegd/scribble-diffusion/internal/archiver"
	"github.com/ds124wfegd/scribble-diffusion/internal/database/postgres"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/kafka"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/telegram"
	"github.com/ds124wfegd/scribble-diffusion/internal/service"
	pgConn "github.com/ds124wfegd/scribble-diffusion/pkg/postgres"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	db, err := pgConn.NewPostgresDB(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Cannot connect to PostgreSQL: %s", err.Error())
	}
	defer db.Close()

	if err := pgConn.RunMigrations(db); err != nil {
		logrus.Fatalf("Cannot run migrations: %s", err.Error())
	}

	scribbles := service.NewScribbleService(postgres.NewScribbleRepository(db))

	bot := telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if !bot.Enabled() {
		logrus.Info("Telegram notifications are disabled")
	}

	handler := archiver.NewArchiver(scribbles, bot, cfg.App.BaseURL)

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.Print("Archiver Started")

	if err := consumer.Run(ctx, handler.Handle); err != nil {
		logrus.Errorf("consumer stopped: %s", err.Error())
	}

	logrus.Print("Archiver Shutting Down")
}
