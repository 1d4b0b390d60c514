// main wires the pre-clearance service: postgres-backed stores, the optional
// redis/minio/kafka infrastructure, the bounded-context services and their
// HTTP handlers, plus the audit outbox relay and the notification
// materializer as background workers. Business logic lives in the internal
// services; this file only connects ports to adapters.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"preclear/db"
	authhandler "preclear/internal/auth/handler"
	"preclear/internal/auth/jwt"
	authservice "preclear/internal/auth/service"
	"preclear/internal/compliance"
	notifhandler "preclear/internal/notification/handler"
	"preclear/internal/notification/materializer"
	notifservice "preclear/internal/notification/service"
	notifstore "preclear/internal/notification/store/notification"
	"preclear/internal/platform/config"
	"preclear/internal/platform/httpserver"
	"preclear/internal/platform/kafka"
	"preclear/internal/platform/logger"
	platformmetrics "preclear/internal/platform/metrics"
	"preclear/internal/platform/objectstore"
	"preclear/internal/platform/postgres"
	platformredis "preclear/internal/platform/redis"
	ruleshandler "preclear/internal/rules/handler"
	rulesservice "preclear/internal/rules/service"
	rulestore "preclear/internal/rules/store/rule"
	shipmenthandler "preclear/internal/shipment/handler"
	shipmentmetrics "preclear/internal/shipment/metrics"
	shipmentservice "preclear/internal/shipment/service"
	shipmentstore "preclear/internal/shipment/store/shipment"
	tokenstore "preclear/internal/shipment/store/token"
	httptransport "preclear/internal/transport/http"
	userhandler "preclear/internal/user/handler"
	userservice "preclear/internal/user/service"
	userstore "preclear/internal/user/store/user"
	"preclear/pkg/platform/audit"
	"preclear/pkg/platform/audit/outbox"
	auditpg "preclear/pkg/platform/audit/store/postgres"
	"preclear/pkg/platform/tx"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration error", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database unavailable", "error", err.Error())
		os.Exit(1)
	}
	defer database.Close()
	if err := postgres.Migrate(ctx, database, db.Migrations); err != nil {
		log.Error("migrations failed", "error", err.Error())
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err.Error())
		os.Exit(1)
	}
	var tokens tokenstore.Store = tokenstore.NewInMemory()
	if redisClient != nil {
		defer redisClient.Close()
		tokens = tokenstore.NewRedis(redisClient.Client)
		log.Info("preclear tokens backed by redis")
	}

	var blobs objectstore.Store = objectstore.NewMemory()
	if cfg.Docs.Endpoint != "" {
		minioStore, err := objectstore.NewMinio(ctx, cfg.Docs)
		if err != nil {
			log.Error("object store unavailable", "error", err.Error())
			os.Exit(1)
		}
		blobs = minioStore
		log.Info("documents backed by object storage", "bucket", cfg.Docs.Bucket)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := platformmetrics.New(reg)
	shipMetrics := shipmentmetrics.New(reg)

	runner := tx.NewRunner(database)
	auditPub := audit.NewPublisher(auditpg.New(database), log)

	jwtService := jwt.New(cfg.JWTSigningKey, cfg.AccessTokenTTL)

	users := userservice.New(userstore.NewPostgres(database), auditPub, log)
	auth := authservice.New(users, jwtService, auditPub, log)

	ruleStore := rulestore.NewPostgres(database)
	rules := rulesservice.New(ruleStore, auditPub, runner, log)

	shipStore := shipmentstore.NewPostgres(database)
	shipments := shipmentservice.New(
		shipStore,
		tokens,
		blobs,
		shipmentservice.EvaluatorFunc(compliance.Evaluate),
		rules,
		auditPub,
		runner,
		shipMetrics,
		log,
		nil,
		shipmentservice.Config{
			AiScoreCutoff:    cfg.AiScoreCutoff,
			PreclearTokenTTL: cfg.PreclearTokenTTL,
		},
	)

	notifications := notifservice.New(notifstore.NewPostgres(database), log)

	router := httptransport.NewRouter(
		httptransport.RouterConfig{
			AllowedOrigins: cfg.CORSOrigins,
			Gatherer:       reg,
			Health: func(ctx context.Context) error {
				if err := postgres.Health(ctx, database); err != nil {
					return err
				}
				if redisClient != nil {
					return redisClient.Health(ctx)
				}
				return nil
			},
		},
		[]httptransport.Registrar{
			authhandler.New(auth, log, httpMetrics),
		},
		[]httptransport.Registrar{
			shipmenthandler.New(shipments, log, httpMetrics, jwtService),
			userhandler.New(users, log, httpMetrics, jwtService),
			ruleshandler.New(rules, log, httpMetrics, jwtService),
			notifhandler.New(notifications, log, httpMetrics, jwtService),
		},
	)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers,
			cfg.Kafka.ApprovalTopic, cfg.Kafka.AuditTopic)
		if err != nil {
			log.Error("kafka unavailable", "error", err.Error())
			os.Exit(1)
		}
		defer producer.Close()

		relay := outbox.NewRelay(database, producer,
			cfg.Kafka.ApprovalTopic, cfg.Kafka.AuditTopic, log)
		g.Go(func() error {
			return ignoreCancel(relay.Run(ctx))
		})

		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, "preclear-notifications",
			[]string{cfg.Kafka.ApprovalTopic}, log)
		if err != nil {
			log.Error("kafka consumer unavailable", "error", err.Error())
			os.Exit(1)
		}
		defer consumer.Close()

		mat := materializer.New(notifications, materializer.OwnerResolver{
			Shipments: shipStore,
			Requests:  ruleStore,
		}, log)
		g.Go(func() error {
			return ignoreCancel(consumer.Run(ctx, mat))
		})
		log.Info("audit pipeline running", "brokers", cfg.Kafka.Brokers)
	} else {
		log.Info("kafka disabled, audit events remain in the outbox table")
	}

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// ignoreCancel swallows the error a background worker returns when the
// shutdown signal cancels its context.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
