package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/joseph-ayodele/parivyaya/internal/common"
	"github.com/joseph-ayodele/parivyaya/internal/export"
	"github.com/joseph-ayodele/parivyaya/internal/extract"
	"github.com/joseph-ayodele/parivyaya/internal/extract/openai"
	"github.com/joseph-ayodele/parivyaya/internal/queue"
	repo "github.com/joseph-ayodele/parivyaya/internal/repository"
	"github.com/joseph-ayodele/parivyaya/internal/server"
	"github.com/joseph-ayodele/parivyaya/internal/submit"
	"github.com/joseph-ayodele/parivyaya/internal/worker"
)

func main() {
	runAPI := flag.Bool("api", true, "serve the gRPC JobsService")
	runWorker := flag.Bool("worker", true, "run the extraction worker pool")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if !*runAPI && !*runWorker {
		logger.Error("nothing to run: both -api and -worker are disabled")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if cfg.Database.AutoMigrate {
		if err := repo.Migrate(ctx, db, logger); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	broker, err := openBroker(cfg.Queue, logger)
	if err != nil {
		logger.Error("failed to connect to task broker", "driver", cfg.Queue.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Error("failed to close task broker", "error", err)
		}
	}()

	logger.Info("task broker ready", "driver", cfg.Queue.Driver, "topic", cfg.Queue.Topic, "max_document_bytes", broker.MaxDocumentBytes())

	jobsRepo := repo.NewJobRepository(db, logger)
	recordsRepo := repo.NewRecordRepository(db, logger)

	g, gctx := errgroup.WithContext(ctx)

	if *runAPI {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		jobsServer := server.NewJobsServer(
			submit.NewService(jobsRepo, broker, cfg.Queue.Topic, logger),
			jobsRepo, recordsRepo,
			export.NewService(jobsRepo, recordsRepo, logger),
			logger,
		)
		grpcServer, _ := server.New(jobsServer, logger)

		g.Go(func() error {
			logger.Info("parivyaya listening", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("stopping gRPC server")
			grpcServer.GracefulStop()
			return nil
		})
	}

	if *runWorker {
		w := worker.New(jobsRepo, newExtractor(cfg.Extract, logger), logger,
			worker.WithSkipTerminal(cfg.Worker.SkipTerminal),
		)
		pool := worker.NewPool(w, broker, cfg.Queue.Topic, cfg.Queue.Group, cfg.Worker.Concurrency, logger)
		g.Go(func() error {
			return pool.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("parivyaya stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("parivyaya stopped")
}

func openBroker(cfg common.QueueConfig, logger *slog.Logger) (queue.Broker, error) {
	opts := []queue.Option{
		queue.WithPartitions(cfg.Partitions),
		queue.WithFetchBatch(cfg.FetchBatch),
	}
	if cfg.AckAfterProcess {
		opts = append(opts, queue.WithCommitPolicy(queue.CommitAfterProcess))
	}
	if cfg.Driver == common.DriverMemory {
		logger.Warn("using the in-process task broker; tasks do not survive a restart")
		return queue.NewMemoryBroker(logger, opts...), nil
	}
	return queue.ConnectNATS(cfg.URL, logger, opts...)
}

func newExtractor(cfg common.ExtractConfig, logger *slog.Logger) extract.Extractor {
	if cfg.Driver == common.DriverNone {
		logger.Warn("extraction disabled; every job will fail", "driver", cfg.Driver)
		return extract.Disabled
	}
	client := openai.NewClient(openai.Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		Model:           cfg.Model,
		Temperature:     cfg.Temperature,
		DefaultCurrency: cfg.DefaultCurrency,
	}, nil, logger)
	return extract.WithTimeout(client, cfg.Timeout)
}
