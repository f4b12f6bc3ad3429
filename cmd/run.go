package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/lbryio/lbry-social-tipbot/bot"
	"github.com/lbryio/lbry-social-tipbot/chain"
	"github.com/lbryio/lbry-social-tipbot/config"
	"github.com/lbryio/lbry-social-tipbot/database"
	"github.com/lbryio/lbry-social-tipbot/events"
	"github.com/lbryio/lbry-social-tipbot/rates"
	"github.com/lbryio/lbry-social-tipbot/reddit"
	"github.com/lbryio/lbry-social-tipbot/repository"
	"github.com/lbryio/lbry-social-tipbot/service"
)

// configureLogging switches the formatter by environment: machine-readable
// JSON in production, readable text with debug output everywhere else.
func configureLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		log.SetFormatter(new(log.JSONFormatter))
		return
	}
	log.SetFormatter(new(log.TextFormatter))
	log.SetLevel(log.DebugLevel)
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting tipbot...")

	// Load configuration
	cfg := config.Get()
	configureLogging(cfg)

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize event bus and unit of work factory
	eventBus := events.NewBus()
	events.SubscribeAuditLog(eventBus)
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Pool-backed repositories for reads and writes outside a unit of work
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	depositRepo := repository.NewDepositRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)

	// Initialize platform clients
	log.Info("Initializing Reddit client...")
	redditClient := reddit.NewClient(reddit.Credentials{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Username:     cfg.RedditUsername,
		Password:     cfg.RedditPassword,
		UserAgent:    cfg.UserAgent,
	}, 30*time.Second)

	notifier, err := reddit.NewNotifier(redditClient, cfg.TemplatesDir)
	if err != nil {
		return fmt.Errorf("failed to load notification templates: %w", err)
	}

	chainClient, err := chain.NewClient(chain.Config{
		RPCURL:  cfg.DaemonRPCURL,
		Account: cfg.DaemonAccount,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize daemon client: %w", err)
	}

	rateClient := rates.NewClient(cfg.RateURL, 10*time.Second)

	// Initialize services
	log.Info("Initializing services...")
	userService := service.NewUserService(uowFactory, chainClient)
	transferService := service.NewTransferService(uowFactory, redditClient, notifier, cfg.HowToUseURL)
	withdrawService := service.NewWithdrawService(uowFactory, withdrawalRepo, chainClient, redditClient, notifier, cfg.HowToUseURL)
	depositService := service.NewDepositService(uowFactory, userRepo, depositRepo, chainClient, cfg.ConfirmationThreshold)
	notifyService := service.NewNotifyService(depositRepo, notifier, cfg.HowToUseURL)

	dispatcher := bot.NewDispatcher(bot.Config{
		Inbox:       redditClient,
		Notifier:    notifier,
		Messages:    messageRepo,
		Users:       userService,
		Transfers:   transferService,
		Withdrawals: withdrawService,
		Rates:       rateClient,
		BotUsername: cfg.RedditUsername,
		Fee:         cfg.Fee(),
		GildPrice:   cfg.GildPrice(),
		HowToUseURL: cfg.HowToUseURL,
	})

	// Interrupted withdrawals must be settled before any new ones are taken.
	log.Info("Reconciling withdrawal attempts...")
	if err := withdrawService.Reconcile(ctx); err != nil {
		return fmt.Errorf("failed to reconcile withdrawals: %w", err)
	}

	// Schedule the polling loops
	scheduler := cron.New()

	_, err = scheduler.AddFunc(cfg.InboxSchedule, func() {
		if err := dispatcher.PollOnce(ctx); err != nil {
			log.WithError(err).Error("Inbox poll failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid inbox schedule %q: %w", cfg.InboxSchedule, err)
	}

	_, err = scheduler.AddFunc(cfg.DepositsSchedule, func() {
		if err := depositService.DiscoverDeposits(ctx); err != nil {
			log.WithError(err).Error("Deposit discovery failed")
		}
		if err := depositService.PromotePendingDeposits(ctx); err != nil {
			log.WithError(err).Error("Deposit promotion failed")
		}
		if err := notifyService.ProcessCompletedDeposits(ctx); err != nil {
			log.WithError(err).Error("Deposit notification failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid deposits schedule %q: %w", cfg.DepositsSchedule, err)
	}

	scheduler.Start()
	log.WithField("environment", cfg.Environment).Info("Tipbot is running")

	<-ctx.Done()

	log.Info("Shutting down tipbot...")
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
		log.Info("Shutdown completed")
	case <-time.After(10 * time.Second):
		log.Warn("Shutdown timeout exceeded")
	}

	return nil
}
