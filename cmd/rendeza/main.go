package main

import (
	"context"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/rendeza/rendeza/app/controllers"
	"github.com/rendeza/rendeza/app/repository"
	"github.com/rendeza/rendeza/internal/pkg/billing"
	"github.com/rendeza/rendeza/internal/pkg/cache"
	"github.com/rendeza/rendeza/internal/pkg/config"
	"github.com/rendeza/rendeza/internal/pkg/database"
	"github.com/rendeza/rendeza/internal/pkg/env"
	"github.com/rendeza/rendeza/internal/pkg/mail"
	"github.com/rendeza/rendeza/internal/pkg/metrics/counter"
	"github.com/rendeza/rendeza/internal/pkg/onboarding"
	"github.com/rendeza/rendeza/internal/pkg/router"
	"github.com/rendeza/rendeza/internal/pkg/s3archive"
)

func main() {
	app, cfg := NewApplication()
	log.Fatal(app.Listen(cfg.ListenAddr()))
}

func NewApplication() (*fiber.App, *config.Config) {
	env.SetupEnvFile()
	if env.IsDev() {
		log.SetLevel(log.LevelDebug)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}

	database.SetupDatabase(cfg.Database, env.IsDev())
	cache.SetupCache(cfg.Cache)
	repository.InitializeFactory(database.GetDB())

	allpay := billing.NewClient(cfg.AllpayClientConfig())
	if !allpay.Configured() {
		log.Warnf("[Allpay] ALLPAY_LOGIN or ALLPAY_API_KEY not set, payments are disabled")
	}
	billingService := billing.NewServiceFromDB(database.GetDB())
	counters := counter.NewWebhookCounters(cache.GetClient())

	var mailer mail.Mailer
	if cfg.Mail.Enabled() {
		mailer = mail.NewSMTPMailer(cfg.Mail)
	} else {
		log.Warnf("[Mail] SMTP_HOST not set, onboarding submissions will be rejected")
	}

	paymentController := &controllers.PaymentController{
		Allpay:   allpay,
		Billing:  billingService,
		Counters: counters,
		Timeout:  cfg.App.RequestTimeout,
	}
	if cfg.Archive.Enabled {
		archive, err := s3archive.NewClient(context.Background(), cfg.Archive)
		if err != nil {
			log.Errorf("[S3Archive] Disabled: %v", err)
		} else {
			paymentController.Archive = archive
		}
	}

	app := fiber.New(fiber.Config{
		AppName:   "Rendeza",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if _, err := os.Stat("public/docs/v1/openapi.yml"); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: "public/docs/v1/openapi.yml",
			Path:     "v1",
		}))
	}

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Payment: paymentController,
		Onboarding: &controllers.OnboardingController{
			Onboarding: onboarding.NewService(repository.GetGlobalRepositories(), mailer, cfg.Mail.To),
		},
		Admin: &controllers.AdminBillingController{
			Billing:  billingService,
			Counters: counters,
		},
		AdminAuth:      cfg.Admin,
		LimiterStorage: cache.NewLimiterStorage(cfg.Cache),
		HealthCheck:    pingDatabase,
	})

	return app, cfg
}

func pingDatabase() error {
	sqlDB, err := database.GetDB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
