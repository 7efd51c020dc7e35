package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gorm.io/gorm"

	redisCache "github.com/zapcampaign/zapcampaign/internal/cache/redis"
	"github.com/zapcampaign/zapcampaign/internal/dispatcher"
	"github.com/zapcampaign/zapcampaign/internal/domain"
	httpHandler "github.com/zapcampaign/zapcampaign/internal/handler/http"
	"github.com/zapcampaign/zapcampaign/internal/persistant/postgresql"
	directoryRepo "github.com/zapcampaign/zapcampaign/internal/repository/directory"
	messageRepo "github.com/zapcampaign/zapcampaign/internal/repository/message"
	"github.com/zapcampaign/zapcampaign/internal/resolver"
	"github.com/zapcampaign/zapcampaign/internal/service"
	"github.com/zapcampaign/zapcampaign/internal/transport/simulated"
)

var (
	configFile = flag.String("config", "config.json", "config file path")
)

func main() {
	// create root context
	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	// listen for terminate signal
	notifyCtx, stop := signal.NotifyContext(appCtx, syscall.SIGTERM)
	defer stop()

	// parse flags
	flag.Parse()

	// parse config
	config, err := ReadConfigJson(*configFile)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// initialize external dependencies
	db, rClient, err := initExternalDependencies(notifyCtx, config)
	if err != nil {
		log.Fatalf("failed to initialize external dependencies: %v", err)
	}

	// init repositories
	msgRepo := messageRepo.NewMessageRepository(db, rClient)
	dirRepo := directoryRepo.NewDirectoryRepository(db)

	// init messaging transport (simulated client standing in for the
	// real protocol integration)
	wapClient := simulated.NewClient(simulated.Config{
		SuccessRate: config.SimSuccessRate,
		SendDelay:   config.SimSendDelay,
	}, logger.With(slog.String("component", "transport")))
	wapClient.Connect()

	// init dispatch pipeline
	rslv := resolver.New(config.DefaultCountryCode, dirRepo)
	disp := dispatcher.New(
		wapClient,
		config.DispatchPaceInterval,
		logger.With(slog.String("component", "dispatcher")),
	)

	// init campaign service
	campaigns, err := service.NewCampaignService(
		msgRepo,
		rslv,
		disp,
		wapClient,
		logger.With(slog.String("component", "campaignService")),
		&config.OutcomeWriteMaxRetry,
	)
	if err != nil {
		log.Fatalf("failed to initiate campaign service: %v", err)
	}

	// init http handler
	handler := httpHandler.NewHttpHandler(
		fmt.Sprintf(":%d", config.HttpPort),
		campaigns,
	)

	wg := sync.WaitGroup{}
	// run http handler
	wg.Go(func() {
		if err := handler.Run(); err != nil {
			logger.Error("http server encountered with an error and closed", "error", err.Error())
		}
		// cancel app context if http handler fails
		appCtxCancel()
	})

	// graceful shutdown
	wg.Go(func() {
		<-notifyCtx.Done()
		logger.Info("application shutting down...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		campaigns.Shutdown()
		wapClient.Disconnect()
		handler.Shutdown(shutDownCtx)
		postgresql.Close(db)
		rClient.Close()
	})

	wg.Wait()
	os.Exit(0)
}

func initExternalDependencies(ctx context.Context, config *Config) (db *gorm.DB, rCache *redisCache.RedisCache, err error) {
	// initialize database
	db, err = postgresql.Initialize(config.DbConnString, []any{
		&domain.Message{},
		&domain.RecipientOutcome{},
		&domain.Contact{},
		&domain.Group{},
	})
	if err != nil {
		return
	}

	// initialize cache
	rCache, err = redisCache.NewRedisCache(ctx, config.RedisAddr)

	return
}
