package main

import (
	"context"
	"log"

	api "certhub-backend/cmd/api"
	authdomain "certhub-backend/internal/auth/domain"
	authrepo "certhub-backend/internal/auth/repository"
	authusecase "certhub-backend/internal/auth/usecase"
	certdomain "certhub-backend/internal/certificate/domain"
	certrepo "certhub-backend/internal/certificate/repository"
	certusecase "certhub-backend/internal/certificate/usecase"
	"certhub-backend/internal/notification"
	"certhub-backend/internal/scheduler"
	"certhub-backend/pkg/config"
	"certhub-backend/pkg/database"
	"certhub-backend/pkg/fcm"
	"certhub-backend/pkg/gmail"
	"certhub-backend/pkg/imap"
	"certhub-backend/pkg/utils/crypto"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := db.AutoMigrate(&authdomain.User{}, &authdomain.DeviceToken{}, &certdomain.Certificate{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	var cipher *crypto.Cipher
	if cfg.EncryptionKey != "" {
		cipher = crypto.NewCipher(cfg.EncryptionKey)
	} else {
		log.Println("[Auth] ENCRYPTION_KEY not set, credentials are stored in plaintext")
	}

	// Repositories
	userRepo := authrepo.NewUserRepository(db, cipher)
	deviceRepo := authrepo.NewDeviceTokenRepository(db)
	certRepo := certrepo.NewCertificateRepository(db)

	// Mailbox providers
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI,
		gmail.WithRateLimit(cfg.GmailRequestsPerSecond, 5),
		gmail.WithSearchLimit(cfg.SyncSearchLimit),
	)
	imapService := imap.NewService(imap.WithSearchLimit(int(cfg.SyncSearchLimit)))

	// Use cases
	authUc := authusecase.NewAuthUsecase(userRepo, deviceRepo, gmailService, imapService, cfg)
	mailbox := certusecase.NewMailboxOpener(gmailService, imapService, authUc)
	syncUc := certusecase.NewSyncUsecase(authUc, certRepo, mailbox, cfg.SyncMaxPerRun)
	certUc := certusecase.NewCertificateUsecase(userRepo, certRepo)

	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[FCM] Push notifications disabled: %v", err)
		} else {
			syncUc.SetNotifier(notification.NewPusher(deviceRepo, fcmClient))
		}
	}

	// Gmail push: Pub/Sub subscription plus a watch per connected account.
	var (
		notifService *notification.Service
		registrar    *notification.WatchRegistrar
	)
	if cfg.GoogleProjectID != "" && cfg.GooglePubSubTopic != "" {
		notifService, err = notification.NewService(ctx, cfg.GoogleProjectID,
			notification.ShortTopicName(cfg.GooglePubSubTopic), cfg.GoogleCredentials, userRepo, syncUc)
		if err != nil {
			log.Printf("[PubSub] Notification service disabled: %v", err)
			notifService = nil
		} else {
			registrar = notification.NewWatchRegistrar(authUc, userRepo, notification.NewGmailWatcher(gmailService),
				cfg.GoogleProjectID, cfg.GooglePubSubTopic, notifService)
		}
	} else {
		log.Println("[PubSub] GOOGLE_PROJECT_ID or GOOGLE_PUBSUB_TOPIC not set, Gmail push disabled")
	}

	// Attaches enrichment and the semantic index, so it runs before anything
	// can trigger a sync.
	handler := api.NewHandler(cfg, authUc, syncUc, certUc, registrar)

	syncScheduler := scheduler.NewSyncScheduler(userRepo, syncUc, cfg.SyncInterval)
	if notifService != nil {
		defer notifService.Close()
		go notifService.Start(ctx)
		syncScheduler.OnTick(registrar.WatchAll)
		if cfg.SyncInterval <= 0 {
			go registrar.WatchAll(ctx)
		}
	}
	syncScheduler.Start()
	defer syncScheduler.Stop()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
