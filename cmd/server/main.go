package main

import (
	"context"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awspkg "github.com/GuiSantosdev/clivus-dev-sub001/pkg/aws"

	"github.com/GuiSantosdev/clivus-dev-sub001/config"
	"github.com/GuiSantosdev/clivus-dev-sub001/controllers"
	"github.com/GuiSantosdev/clivus-dev-sub001/database"
	"github.com/GuiSantosdev/clivus-dev-sub001/gateways"
	"github.com/GuiSantosdev/clivus-dev-sub001/kafka"
	"github.com/GuiSantosdev/clivus-dev-sub001/models"
	"github.com/GuiSantosdev/clivus-dev-sub001/repository"
	"github.com/GuiSantosdev/clivus-dev-sub001/routes"
	"github.com/GuiSantosdev/clivus-dev-sub001/sender"
	"github.com/GuiSantosdev/clivus-dev-sub001/services"
)

func main() {
	database.LoadEnv()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.Payment{}, &models.User{}, &models.Plan{}); err != nil {
		logger.Fatal("failed to migrate models", zap.Error(err))
	}

	paymentRepo := repository.NewGormPaymentRepo(db)
	userRepo := repository.NewGormUserRepo(db)
	planRepo := repository.NewGormPlanRepo(db)

	registry := buildRegistry(cfg, logger)

	awsCfg, err := awspkg.LoadAWSConfig(context.Background())
	if err != nil {
		logger.Fatal("failed to load aws config", zap.Error(err))
	}
	snsClient := awspkg.NewSNSClient(awsCfg)

	mailer, err := sender.NewSMTPSender()
	if err != nil {
		logger.Fatal("failed to configure smtp sender", zap.Error(err))
	}

	producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, logger)
	defer producer.Close()

	accessSvc := services.NewAccessService(userRepo, logger)
	notificationSvc := services.NewNotificationService(mailer, snsClient, cfg.SaleSNSTopicARN, logger)
	reconciler := services.NewReconciler(paymentRepo, userRepo, planRepo, accessSvc, notificationSvc, producer, logger)
	checkoutSvc := services.NewCheckoutService(paymentRepo, userRepo, planRepo, registry, reconciler, logger)

	r := gin.New()
	r.Use(gin.Recovery())

	cc := &controllers.CheckoutController{Checkout: checkoutSvc, Logger: logger}
	wc := &controllers.WebhookController{
		Registry:   registry,
		Payments:   paymentRepo,
		Reconciler: reconciler,
		Logger:     logger,
	}
	routes.Register(r, cc, wc)

	logger.Info("payment service running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// buildRegistry instantiates an adapter for every enabled, credentialed
// gateway. Anything else stays out of the registry and fails closed at
// lookup time.
func buildRegistry(cfg *config.Config, logger *zap.Logger) *gateways.Registry {
	var adapters []gateways.Gateway

	if cfg.Stripe.Enabled && cfg.Stripe.StripeSecretKey != "" {
		adapters = append(adapters, gateways.NewStripeGateway(
			cfg.Stripe.StripeSecretKey,
			cfg.Stripe.StripeWebhookKey,
			cfg.FrontendURL+"/checkout/success",
			cfg.FrontendURL+"/checkout/cancel",
		))
	}
	if cfg.Asaas.Enabled && cfg.Asaas.AsaasAPIKey != "" {
		adapters = append(adapters, gateways.NewAsaasGateway(
			cfg.Asaas.AsaasAPIKey,
			cfg.Asaas.AsaasWebhookToken,
			cfg.Asaas.Sandbox,
		))
	}
	if cfg.Efi.Enabled && cfg.Efi.EfiClientID != "" {
		adapters = append(adapters, gateways.NewEfiGateway(
			cfg.Efi.EfiClientID,
			cfg.Efi.EfiClientSecret,
			cfg.Efi.EfiPixKey,
			cfg.Efi.Sandbox,
		))
	}
	if cfg.Cora.Enabled && cfg.Cora.CoraAPIToken != "" {
		adapters = append(adapters, gateways.NewCoraGateway(
			cfg.Cora.CoraAPIToken,
			cfg.Cora.CoraEndpointSecret,
			cfg.Cora.Sandbox,
		))
	}
	if cfg.Pagarme.Enabled && cfg.Pagarme.PagarmeAPIKey != "" {
		adapters = append(adapters, gateways.NewPagarmeGateway(
			cfg.Pagarme.PagarmeAPIKey,
			cfg.Pagarme.PagarmeWebhookSecret,
		))
	}

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, string(a.Name()))
	}
	logger.Info("payment gateways enabled", zap.Strings("gateways", names))

	return gateways.NewRegistry(adapters...)
}
