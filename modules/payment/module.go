package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/khalidAdell/quick-task/domain/payment"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PaymentModule releases task payments and keeps the payment ledger.
type PaymentModule struct {
	db      *gorm.DB
	dsn     string
	gateway Gateway
	service *PaymentService
}

var _ mono.Module = (*PaymentModule)(nil)
var _ mono.ServiceProviderModule = (*PaymentModule)(nil)
var _ mono.HealthCheckableModule = (*PaymentModule)(nil)

// NewModule creates a PaymentModule with its ledger in the sqlite database at dsn.
func NewModule(dsn string, gateway Gateway) *PaymentModule {
	if gateway == nil {
		gateway = NewSandboxGateway()
	}
	return &PaymentModule{
		dsn:     dsn,
		gateway: gateway,
	}
}

func (m *PaymentModule) Name() string {
	return "payment"
}

func (m *PaymentModule) Start(_ context.Context) error {
	db, err := OpenDB(m.dsn)
	if err != nil {
		return err
	}
	m.db = db
	m.service = NewPaymentService(NewLedger(db), m.gateway)

	log.Printf("[payment] Module started (gateway: %s, database: %s)", m.gateway.Name(), m.dsn)
	return nil
}

// OpenDB opens the ledger database and migrates its schema.
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Payment{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func (m *PaymentModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[payment] Module stopped")
	return nil
}

func (m *PaymentModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get database connection: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"gateway": m.gateway.Name()},
	}
}

func (m *PaymentModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "release-payment", json.Unmarshal, json.Marshal, m.releasePayment,
	); err != nil {
		return fmt.Errorf("failed to register release-payment service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "payment-status", json.Unmarshal, json.Marshal, m.paymentStatus,
	); err != nil {
		return fmt.Errorf("failed to register payment-status service: %w", err)
	}

	log.Printf("[payment] Registered services: release-payment, payment-status")
	return nil
}

func (m *PaymentModule) releasePayment(ctx context.Context, req ReleasePaymentRequest, _ *mono.Msg) (PaymentResponse, error) {
	p, err := m.service.Release(ctx, req)
	if err != nil {
		return PaymentResponse{}, err
	}
	return toPaymentResponse(p), nil
}

func (m *PaymentModule) paymentStatus(ctx context.Context, req PaymentStatusRequest, _ *mono.Msg) (PaymentStatusResponse, error) {
	p, err := m.service.Status(ctx, req.TaskID)
	if err != nil {
		return PaymentStatusResponse{}, err
	}
	if p == nil {
		return PaymentStatusResponse{Found: false}, nil
	}
	return PaymentStatusResponse{Found: true, Payment: toPaymentResponse(p)}, nil
}
