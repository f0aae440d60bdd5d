//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ministry-platform/service-enrollment/internal/adapter"
	"github.com/ministry-platform/service-enrollment/internal/application"
	enrollmentEvents "github.com/ministry-platform/service-enrollment/internal/events"
	"github.com/ministry-platform/service-enrollment/internal/lock"
	"github.com/ministry-platform/service-enrollment/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// enrollmentStack holds wired-up enrollment service components.
type enrollmentStack struct {
	Checkout        *application.CheckoutService
	Webhook         *application.WebhookService
	Refund          *application.RefundService
	Consumer        *enrollmentEvents.RegistrationEventConsumer
	Programs        *repository.ProgramRepositoryImpl
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_enrollment",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_enrollment sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error)
	require.NoError(t, db.AutoMigrate(
		&repository.PurchaseModel{},
		&repository.PromoCodeModel{},
		&repository.ProgramModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers,
		enrollmentEvents.TopicPurchaseEvents,
		enrollmentEvents.TopicNotificationRequests,
		enrollmentEvents.TopicRegistrationEvents,
	)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupEnrollmentStack wires up the full enrollment service stack with the
// mock payment processor.
func setupEnrollmentStack(t *testing.T, db *gorm.DB, brokers []string) *enrollmentStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	purchaseRepo := repository.NewPurchaseRepository(db)
	promoRepo := repository.NewPromoCodeRepository(db)
	programRepo := repository.NewProgramRepository(db)
	processor := adapter.NewMockProcessor(logger)
	locker := lock.NewKeyedLocker(logger)
	producer := enrollmentEvents.NewProducer(brokers, logger)
	notifier := enrollmentEvents.NewNotifier(producer, logger)

	checkoutSvc := application.NewCheckoutService(
		purchaseRepo, programRepo, promoRepo, processor, locker, notifier,
		application.CheckoutConfig{
			Currency:           "eur",
			MinimumChargeCents: 50,
			LockTimeout:        10 * time.Second,
			SuccessURL:         "https://app.test/success",
			CancelURL:          "https://app.test/cancel",
		},
		logger,
	)
	webhookSvc := application.NewWebhookService(
		purchaseRepo, programRepo, promoRepo, processor, locker, notifier,
		application.WebhookConfig{
			LockTimeout:         30 * time.Second,
			BundlePromoEnabled:  true,
			BundleDiscountCents: 1000,
			BundleValidity:      90 * 24 * time.Hour,
		},
		logger,
	)
	refundSvc := application.NewRefundService(
		purchaseRepo, processor, locker, notifier,
		30*24*time.Hour, 10*time.Second,
		logger,
	)

	groupID := fmt.Sprintf("test-enrollment-%s", uuid.New().String()[:8])
	consumer := enrollmentEvents.NewRegistrationEventConsumer(brokers, groupID, checkoutSvc, logger)

	return &enrollmentStack{
		Checkout:        checkoutSvc,
		Webhook:         webhookSvc,
		Refund:          refundSvc,
		Consumer:        consumer,
		Programs:        programRepo,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedProgram inserts a program row and returns its id.
func seedProgram(t *testing.T, db *gorm.DB, priceCents int64, classRepLimit int, classRepDiscount int64) uuid.UUID {
	t.Helper()
	programID := uuid.New()
	now := time.Now().UTC()
	count := 0
	model := repository.ProgramModel{
		ID:               programID,
		Title:            "Integration Test Program",
		PriceCents:       priceCents,
		ClassRepLimit:    classRepLimit,
		ClassRepCount:    &count,
		ClassRepDiscount: classRepDiscount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed program")
	return programID
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := enrollmentEvents.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := enrollmentEvents.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForPurchaseStatus polls the purchases table until the status matches.
func waitForPurchaseStatus(t *testing.T, db *gorm.DB, purchaseID uuid.UUID, expectedStatus string, timeout time.Duration) repository.PurchaseModel {
	t.Helper()
	var result repository.PurchaseModel
	require.Eventually(t, func() bool {
		var model repository.PurchaseModel
		err := db.Where("id = ?", purchaseID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "purchase did not transition to %s", expectedStatus)
	return result
}

// waitForPurchaseGone polls until the purchase row is deleted.
func waitForPurchaseGone(t *testing.T, db *gorm.DB, purchaseID uuid.UUID, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		var count int64
		if err := db.Model(&repository.PurchaseModel{}).Where("id = ?", purchaseID).Count(&count).Error; err != nil {
			return false
		}
		return count == 0
	}, timeout, 200*time.Millisecond, "purchase row was not deleted")
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) enrollmentEvents.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := enrollmentEvents.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
