// Package config loads service configuration from environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ministry-platform/service-enrollment/internal/platform/database"
)

// KafkaConfig holds broker and consumer-group settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// StripeConfig holds payment-processor settings. An empty SecretKey selects
// the mock processor.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// RedisConfig holds the optional distributed-lock backend. An empty Addr
// selects the in-process locker.
type RedisConfig struct {
	Addr     string
	Password string
}

// CheckoutConfig tunes the purchase flow.
type CheckoutConfig struct {
	Currency           string
	MinimumChargeCents int64
	LockTimeout        time.Duration
	WebhookLockTimeout time.Duration
	RefundWindow       time.Duration
}

// BundlePromoConfig controls post-purchase bundle code issuance.
type BundlePromoConfig struct {
	Enabled       bool
	DiscountCents int64
	Validity      time.Duration
}

// ServiceConfig holds all configuration for the enrollment service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	DBConfig    database.Config
	Kafka       KafkaConfig
	Stripe      StripeConfig
	Redis       RedisConfig
	Checkout    CheckoutConfig
	BundlePromo BundlePromoConfig
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollment")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "service-enrollment")
	v.SetDefault("CHECKOUT_CURRENCY", "eur")
	v.SetDefault("MINIMUM_CHARGE_CENTS", 50)
	v.SetDefault("CHECKOUT_LOCK_TIMEOUT_SECONDS", 10)
	v.SetDefault("WEBHOOK_LOCK_TIMEOUT_SECONDS", 30)
	v.SetDefault("REFUND_WINDOW_DAYS", 30)
	v.SetDefault("BUNDLE_PROMO_ENABLED", true)
	v.SetDefault("BUNDLE_PROMO_DISCOUNT_CENTS", 1000)
	v.SetDefault("BUNDLE_PROMO_VALIDITY_DAYS", 90)
	v.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success")
	v.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancelled")

	return &ServiceConfig{
		Port:   v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		DBConfig: database.Config{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    v.GetString("CHECKOUT_SUCCESS_URL"),
			CancelURL:     v.GetString("CHECKOUT_CANCEL_URL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Checkout: CheckoutConfig{
			Currency:           v.GetString("CHECKOUT_CURRENCY"),
			MinimumChargeCents: v.GetInt64("MINIMUM_CHARGE_CENTS"),
			LockTimeout:        time.Duration(v.GetInt("CHECKOUT_LOCK_TIMEOUT_SECONDS")) * time.Second,
			WebhookLockTimeout: time.Duration(v.GetInt("WEBHOOK_LOCK_TIMEOUT_SECONDS")) * time.Second,
			RefundWindow:       time.Duration(v.GetInt("REFUND_WINDOW_DAYS")) * 24 * time.Hour,
		},
		BundlePromo: BundlePromoConfig{
			Enabled:       v.GetBool("BUNDLE_PROMO_ENABLED"),
			DiscountCents: v.GetInt64("BUNDLE_PROMO_DISCOUNT_CENTS"),
			Validity:      time.Duration(v.GetInt("BUNDLE_PROMO_VALIDITY_DAYS")) * 24 * time.Hour,
		},
	}, nil
}
