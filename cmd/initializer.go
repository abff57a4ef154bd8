package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"riderBack/internal/config"
	"riderBack/internal/shipment"
	shiphttp "riderBack/internal/shipment/http"
	"riderBack/internal/storage"
	"riderBack/utils"
)

type application struct {
	errorLog *log.Logger
	infoLog  *log.Logger
	db       *storage.DB
	tokens   *utils.Manager
	shipment *shipment.Module
}

// appLogger adapts the info/error log pair to the module Logger interface.
type appLogger struct {
	info *log.Logger
	err  *log.Logger
}

func (l appLogger) Infof(format string, args ...interface{}) {
	_ = l.info.Output(2, fmt.Sprintf(format, args...))
}

func (l appLogger) Errorf(format string, args ...interface{}) {
	_ = l.err.Output(2, fmt.Sprintf(format, args...))
}

func initializeApp(ctx context.Context, cfg config.Config, db *storage.DB, rdb *redis.Client, errorLog, infoLog *log.Logger) (*application, error) {
	logger := appLogger{info: infoLog, err: errorLog}

	tokens, err := utils.NewManager(cfg.Auth.SigningKey)
	if err != nil {
		return nil, err
	}
	tokenTTL := 24 * time.Hour
	if cfg.Auth.TokenTTL != "" {
		if tokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTL); err != nil {
			return nil, fmt.Errorf("parse auth token ttl: %w", err)
		}
	}

	shipCfg, err := shipment.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("shipment config: %w", err)
	}

	publisher, err := shipment.NewPublisher(shipment.EventsConfig{
		Driver:   cfg.Events.Driver,
		Brokers:  cfg.Events.Brokers,
		Topic:    cfg.Events.Topic,
		AMQPURL:  cfg.Events.AMQPURL,
		Exchange: cfg.Events.Exchange,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("events publisher: %w", err)
	}

	push, err := shipment.NewNotifier(ctx, cfg.Firebase.CredentialsFile, logger)
	if err != nil {
		return nil, fmt.Errorf("fcm: %w", err)
	}

	deps := &shipment.Deps{
		DB:          db,
		Redis:       rdb,
		Logger:      logger,
		Config:      shipCfg,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		Tokens:      tokens,
		VerifyToken: tokens.RiderID,
		HTTP:        shiphttp.Config{TokenTTL: tokenTTL},
		Publisher:   publisher,
		Push:        push,
		DGISKey:     cfg.DGIS.APIKey,
		DGISRegion:  cfg.DGIS.RegionID,
	}
	if cfg.Storage.Bucket != "" {
		uploader, err := utils.NewUploader(utils.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		deps.Uploader = uploader
	}

	module, err := shipment.Bootstrap(deps)
	if err != nil {
		return nil, err
	}

	return &application{
		errorLog: errorLog,
		infoLog:  infoLog,
		db:       db,
		tokens:   tokens,
		shipment: module,
	}, nil
}
