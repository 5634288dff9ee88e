package main

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"museum.zuyanh.net/internal/chatbot"
	"museum.zuyanh.net/internal/config"
	"museum.zuyanh.net/internal/jsonlog"
	"museum.zuyanh.net/internal/mailer"
	"museum.zuyanh.net/internal/notify"
	"museum.zuyanh.net/internal/payment"
	"museum.zuyanh.net/internal/repository"
	"museum.zuyanh.net/internal/storage"
)

const version = "1.0.0"

type application struct {
	config   config.Config
	logger   *jsonlog.Logger
	models   repository.Models
	mailer   mailSender
	whatsapp notify.Sender
	archive  ticketArchive
	payments paymentGateway
	chat     *chatbot.Bot
	metrics  *metrics
	wg       sync.WaitGroup
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		jsonlog.New(jsonlog.Config{}).PrintFatal(err, nil)
	}

	logger := jsonlog.New(jsonlog.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer logger.Sync()

	db, err := openDB(cfg)
	if err != nil {
		logger.PrintFatal(err, nil)
	}
	defer db.Close()

	logger.PrintInfo("database connection pool established", nil)

	app := &application{
		config:   cfg,
		logger:   logger,
		models:   repository.NewModel(db),
		mailer:   mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender),
		whatsapp: notify.New(cfg.WhatsApp.AccountSID, cfg.WhatsApp.AuthToken, cfg.WhatsApp.From, logger),
		metrics:  newMetrics(),
	}

	if cfg.StorageEnabled() {
		archive, err := storage.New(context.Background(), storage.Config{
			Endpoint:      cfg.Storage.Endpoint,
			Region:        cfg.Storage.Region,
			Bucket:        cfg.Storage.Bucket,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			UsePathStyle:  cfg.Storage.UsePathStyle,
			PresignExpiry: cfg.Storage.PresignExpiry,
		})
		if err != nil {
			logger.PrintFatal(err, nil)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = archive.EnsureBucket(ctx)
		cancel()
		if err != nil {
			logger.PrintError(err, map[string]string{"component": "storage"})
		}

		app.archive = archive
	}

	if cfg.PaymentEnabled() {
		app.payments = payment.New(payment.Config{
			AppID:       cfg.Payment.AppID,
			Key1:        cfg.Payment.Key1,
			Key2:        cfg.Payment.Key2,
			Endpoint:    cfg.Payment.Endpoint,
			CallbackURL: cfg.Payment.CallbackURL,
		})
	}

	app.chat = chatbot.New(app.newSessionStore(), chatBackend{app: app}, app.newLLM(), logger)

	err = app.serve()
	if err != nil {
		logger.PrintFatal(err, nil)
	}
}

func openDB(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.DB.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *application) newSessionStore() chatbot.SessionStore {
	if app.config.Redis.Addr == "" {
		return chatbot.NewMemoryStore(app.config.Chat.SessionTTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.config.Redis.Addr,
		Password: app.config.Redis.Password,
		DB:       app.config.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		app.logger.PrintError(err, map[string]string{"component": "redis", "fallback": "memory"})
		client.Close()
		return chatbot.NewMemoryStore(app.config.Chat.SessionTTL)
	}

	return chatbot.NewRedisStore(client, app.config.Chat.SessionTTL)
}

func (app *application) newLLM() chatbot.LLM {
	if app.config.LLM.BaseURL == "" {
		return nil
	}
	return chatbot.NewOpenAIClient(app.config.LLM.BaseURL, app.config.LLM.APIKey, app.config.LLM.Model, app.config.LLM.Timeout)
}
