package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aivilo1308/interim365-sub000/internal/api"
	"github.com/Aivilo1308/interim365-sub000/internal/config"
	"github.com/Aivilo1308/interim365-sub000/internal/exchange/consumer"
	"github.com/Aivilo1308/interim365-sub000/internal/exchange/producer"
	"github.com/Aivilo1308/interim365-sub000/internal/kelio"
	"github.com/Aivilo1308/interim365-sub000/internal/proposal"
	"github.com/Aivilo1308/interim365-sub000/internal/repository/employee"
	"github.com/Aivilo1308/interim365-sub000/internal/repository/events"
	"github.com/Aivilo1308/interim365-sub000/internal/repository/staffing"
	"github.com/Aivilo1308/interim365-sub000/internal/repository/syncaudit"
	"github.com/Aivilo1308/interim365-sub000/internal/scoring"
	staffsync "github.com/Aivilo1308/interim365-sub000/internal/sync"
	"github.com/Aivilo1308/interim365-sub000/internal/workflow"
	"github.com/Aivilo1308/interim365-sub000/library/pg"
	"github.com/Aivilo1308/interim365-sub000/library/yamlreader"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(rootCtx)
	defer cancel()

	cfg := MustNewConfig(parseFlags())

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimeFieldFormat = time.RFC3339

	log.Info().Msgf("pg=%+v", cfg.Postgres.Conn.Value)
	log.Info().Msgf("kafka=%+v", cfg.Kafka.Bootstrap.Value)

	pgClient, err := pg.NewPG(rootCtx, cfg.Postgres.Conn.Value, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres init failed")
	}
	defer pgClient.Close()

	employeeRepo := employee.NewRepository(pgClient.Pool())
	staffingRepo := staffing.NewRepository(pgClient.Pool())
	auditRepo := syncaudit.NewRepository(pgClient.Pool())
	eventsRepo := events.NewRepository(pgClient.Pool())

	staffingProducer, err := initStaffingProducer(cfg.Kafka)
	if err != nil {
		log.Fatal().Err(err).Msg("kafka producer init failed")
	}
	defer func() { _ = staffingProducer.Close() }()

	engine, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		log.Fatal().Err(err).Msg("scoring config invalid")
	}
	scoringService := scoring.NewService(engine, employeeRepo, staffingRepo, log.Logger)

	workflowService := workflow.NewService(workflow.Config{
		LevelsNormal:   cfg.Workflow.LevelsNormal.Value,
		LevelsHigh:     cfg.Workflow.LevelsHigh.Value,
		LevelsCritical: cfg.Workflow.LevelsCritical.Value,
		MinCommentLen:  cfg.Workflow.MinCommentLen.Value,
		RolesByLevel:   cfg.Workflow.RolesByLevel,
	}, staffingRepo, staffingProducer, log.Logger)

	proposalRegistry := proposal.NewRegistry(
		staffingRepo,
		scoringService,
		staffingRepo,
		workflowService,
		staffingProducer,
		cfg.Proposal.MinJustificationLen.Value,
		log.Logger,
	)

	kelioClient := kelio.NewClient(kelio.Config{
		BaseURL:     cfg.Kelio.BaseURL.Value,
		APIKey:      cfg.Kelio.APIKey.Value,
		CallTimeout: time.Duration(cfg.Kelio.CallTimeoutMS.Value) * time.Millisecond,
	}, log.Logger)

	orchestrator := staffsync.NewOrchestrator(
		kelioClient,
		employeeRepo,
		auditRepo,
		staffingProducer,
		staffsync.Config{
			Workers:          cfg.Sync.Workers.Value,
			FailureTolerance: cfg.Sync.FailureTolerance.Value,
			AuditRetention:   time.Duration(cfg.Sync.AuditRetentionD.Value) * 24 * time.Hour,
		},
		log.Logger,
	)

	completer := workflow.NewCompleter(workflowService, time.Hour, log.Logger)

	feedConsumer := consumer.NewEmployeeFeedRunner(
		cfg.Kafka.Bootstrap.Value,
		cfg.Kafka.Topics.KelioEmployees.Value,
		"consumer_kelio_feed",
		eventsRepo,
		employeeRepo,
		log.Logger,
	)

	apiService := api.NewService(api.ServiceDeps{
		Port:         cfg.API.Port.Value,
		Scorer:       scoringService,
		Workflow:     workflowService,
		Proposals:    proposalRegistry,
		Sync:         orchestrator,
		RequestRepo:  staffingRepo,
		EmployeeRepo: employeeRepo,
		EventsRepo:   eventsRepo,
	})

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Msg("starting HTTP API")
		if err := apiService.Start(gctx); err != nil {
			log.Error().Err(err).Msg("HTTP API stopped with error")

			return err
		}

		log.Info().Msg("HTTP API stopped")

		return nil
	})

	group.Go(func() error {
		log.Info().Msg("starting consumer_kelio_feed")

		if err := feedConsumer.Start(gctx); err != nil {
			log.Error().Err(err).Msg("consumer_kelio_feed stopped with error")

			return err
		}

		log.Info().Msg("consumer_kelio_feed stopped")

		return nil
	})

	group.Go(func() error {
		log.Info().Msg("starting workflow completer")

		if err := completer.Start(gctx); err != nil {
			log.Error().Err(err).Msg("workflow completer stopped with error")

			return err
		}

		log.Info().Msg("workflow completer stopped")

		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = group.Wait()
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("signal received, graceful shutdown...")
		<-done
		log.Info().Msg("all services stopped")
	case <-done:
		log.Info().Msg("all services stopped")
	}
}

func initStaffingProducer(kafkaConfig config.KafkaConfig) (*producer.StaffingProducer, error) {
	sCfg := sarama.NewConfig()
	sCfg.Version = sarama.V3_3_2_0
	sCfg.ClientID = kafkaConfig.ProducerClientID.Value
	sCfg.Producer.Return.Successes = true
	sCfg.Producer.RequiredAcks = sarama.WaitForAll
	sCfg.Producer.Idempotent = true
	sCfg.Net.MaxOpenRequests = 1
	sCfg.Producer.Retry.Max = 5
	sCfg.Producer.Retry.Backoff = 200 * time.Millisecond

	sp, err := sarama.NewSyncProducer([]string{kafkaConfig.Bootstrap.Value}, sCfg)
	if err != nil {
		return nil, err
	}

	prod := producer.NewStaffingProducer(
		sp,
		producer.Config{
			TopicNotifications: kafkaConfig.Topics.Notifications.Value,
			TopicSyncReports:   kafkaConfig.Topics.SyncReports.Value,
			Source:             "interim365-api",
		},
		log.Logger,
	)

	return prod, nil
}

func MustNewConfig(path string) *config.Config {
	cfg, err := yamlreader.NewConfig[config.Config](path)

	if err != nil {
		log.Fatal().Str("path", path).Err(err).Msg("cannot read application config")
		return nil
	}

	return cfg
}

func parseFlags() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	godotenv.Load(".env")

	if configPath == "" {
		configPath = "config/application-local.yaml"
	}
	return configPath
}
