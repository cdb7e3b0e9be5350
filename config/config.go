package config

import (
	"fmt"
	"os"
)

// GatewayConfig holds one provider's credentials. A gateway with
// Enabled=false (or missing credentials) never gets an adapter.
type GatewayConfig struct {
	Enabled bool
	Sandbox bool

	// Stripe
	StripeSecretKey  string
	StripeWebhookKey string

	// Asaas
	AsaasAPIKey       string
	AsaasWebhookToken string

	// EFI
	EfiClientID     string
	EfiClientSecret string
	EfiPixKey       string

	// Cora
	CoraAPIToken       string
	CoraEndpointSecret string

	// Pagar.me
	PagarmeAPIKey        string
	PagarmeWebhookSecret string
}

type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string

	FrontendURL string

	KafkaBrokers string
	KafkaTopic   string

	SaleSNSTopicARN string

	Stripe  GatewayConfig
	Asaas   GatewayConfig
	Efi     GatewayConfig
	Cora    GatewayConfig
	Pagarme GatewayConfig
}

func LoadConfig() (*Config, error) {
	sandbox := getEnv("GATEWAY_ENV", "sandbox") != "production"

	cfg := &Config{
		Port:             getEnv("PORT", "8087"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:   getEnv("KAFKA_PAYMENT_TOPIC", "payment-events"),

		SaleSNSTopicARN: getEnv("SALE_SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:sale-events"),

		Stripe: GatewayConfig{
			Enabled:          getEnv("STRIPE_ENABLED", "true") == "true",
			Sandbox:          sandbox,
			StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
			StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Asaas: GatewayConfig{
			Enabled:           getEnv("ASAAS_ENABLED", "true") == "true",
			Sandbox:           sandbox,
			AsaasAPIKey:       os.Getenv("ASAAS_API_KEY"),
			AsaasWebhookToken: os.Getenv("ASAAS_WEBHOOK_TOKEN"),
		},
		Efi: GatewayConfig{
			Enabled:         getEnv("EFI_ENABLED", "true") == "true",
			Sandbox:         sandbox,
			EfiClientID:     os.Getenv("EFI_CLIENT_ID"),
			EfiClientSecret: os.Getenv("EFI_CLIENT_SECRET"),
			EfiPixKey:       os.Getenv("EFI_PIX_KEY"),
		},
		Cora: GatewayConfig{
			Enabled:            getEnv("CORA_ENABLED", "true") == "true",
			Sandbox:            sandbox,
			CoraAPIToken:       os.Getenv("CORA_API_TOKEN"),
			CoraEndpointSecret: os.Getenv("CORA_ENDPOINT_SECRET"),
		},
		Pagarme: GatewayConfig{
			Enabled:              getEnv("PAGARME_ENABLED", "true") == "true",
			Sandbox:              sandbox,
			PagarmeAPIKey:        os.Getenv("PAGARME_API_KEY"),
			PagarmeWebhookSecret: os.Getenv("PAGARME_WEBHOOK_SECRET"),
		},
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("missing required postgres environment variables")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
