package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"socialid/internal/auth/hasher"
	"socialid/internal/auth/service"
	"socialid/internal/auth/store/identity"
	"socialid/internal/auth/store/profile"
	"socialid/internal/auth/store/profilecache"
	"socialid/internal/jobs"
	jwttoken "socialid/internal/jwt_token"
	"socialid/internal/mail"
	"socialid/internal/media"
	"socialid/internal/platform/config"
	"socialid/internal/platform/metrics"
	"socialid/internal/platform/postgres"
	platformredis "socialid/internal/platform/redis"
)

// app holds the wired process dependencies shared by serve and worker.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	db      *sql.DB
	redis   *platformredis.Client
	tokens  *jwttoken.JWTService
	runner  *jobs.Runner
	service *service.Service

	closers []func() error
}

// newApp wires the process. Only a process that runs the workers opens the
// dead-letter file, which bbolt locks to a single process.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, workers bool) (_ *app, err error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(prometheus.DefaultRegisterer),
		tokens:  jwttoken.NewJWTService(cfg.Session.SigningKey, cfg.Session.Issuer, cfg.Session.TTL),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = postgres.Open(ctx, cfg.Postgres.DSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.db.Close)

	a.redis, err = platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.redis.Close)

	backend, err := a.jobBackend(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, backend.Close)

	runnerOpts := []jobs.Option{
		jobs.WithLogger(logger),
		jobs.WithMetrics(a.metrics),
		jobs.WithMaxAttempts(cfg.Jobs.MaxAttempts),
		jobs.WithBackoff(cfg.Jobs.Backoff, cfg.Jobs.MaxBackoff),
		jobs.WithBatchSize(cfg.Jobs.BatchSize),
	}
	if workers {
		deadLetters, err := jobs.OpenBoltDeadLetters(cfg.Jobs.DeadLetterPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, deadLetters.Close)
		runnerOpts = append(runnerOpts, jobs.WithDeadLetters(deadLetters))
	}
	a.runner = jobs.NewRunner(backend, runnerOpts...)

	mediaStore, err := a.mediaStore(ctx)
	if err != nil {
		return nil, err
	}

	a.service, err = service.New(
		identity.NewPostgres(a.db),
		profile.NewPostgres(a.db),
		profilecache.NewRedis(a.redis.Client),
		mediaStore,
		a.tokens,
		hasher.New(hasher.DefaultParams),
		a.runner,
		service.WithLogger(logger),
		service.WithMetrics(a.metrics),
		service.WithMailer(a.mailer()),
		service.WithClientURL(cfg.HTTP.ClientURL),
		service.WithJobConcurrency(cfg.Jobs.Concurrency, cfg.Jobs.EmailConcurrency),
	)
	if err != nil {
		return nil, err
	}
	if err = a.service.RegisterJobHandlers(a.runner); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) jobBackend(ctx context.Context) (jobs.Backend, error) {
	switch a.cfg.Jobs.Backend {
	case config.JobBackendMemory:
		return jobs.NewMemoryBackend(), nil
	case config.JobBackendRedis:
		return jobs.NewRedisBackend(a.redis.Client, a.cfg.Jobs.Consumer), nil
	case config.JobBackendKafka:
		kc := a.cfg.Jobs.Kafka
		backend, err := jobs.NewKafkaBackend(kc.Brokers, kc.Group, kc.TopicPrefix)
		if err != nil {
			return nil, err
		}
		if err := backend.EnsureTopics(ctx, kc.Partitions, kc.Replication,
			service.QueueAuth, service.QueueUser, service.QueueEmail); err != nil {
			_ = backend.Close()
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown job backend %q", a.cfg.Jobs.Backend)
	}
}

func (a *app) mediaStore(ctx context.Context) (service.MediaStore, error) {
	mc := a.cfg.Media
	if mc.Backend != config.MediaBackendS3 {
		return media.NewMemoryStore(mc.PublicBaseURL), nil
	}
	store, err := media.NewS3Store(ctx, media.S3Config{
		Bucket:        mc.Bucket,
		Region:        mc.Region,
		Endpoint:      mc.Endpoint,
		AccessKey:     mc.AccessKey,
		SecretKey:     mc.SecretKey,
		UsePathStyle:  mc.UsePathStyle,
		PublicBaseURL: mc.PublicBaseURL,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) mailer() service.Mailer {
	mc := a.cfg.Mail
	if mc.Backend != config.MailBackendSMTP {
		return mail.NewLogSender(a.logger)
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     mc.Host,
		Port:     mc.Port,
		Username: mc.Username,
		Password: mc.Password,
		From:     mc.From,
		Timeout:  mc.Timeout,
	})
}

// health reports whether the durable store and the cache are reachable.
func (a *app) health(ctx context.Context) error {
	return errors.Join(a.db.PingContext(ctx), a.redis.Health(ctx))
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
