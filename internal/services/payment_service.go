package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rwandabus/booking-api/internal/config"
	"github.com/rwandabus/booking-api/internal/models"
)

// ChargeRequest describes one payment attempt for a booking
type ChargeRequest struct {
	BookingID uuid.UUID
	Amount    float64
	Currency  string
	Method    models.PaymentMethod
	Phone     string
}

// ChargeResult is the gateway's resolution of a charge attempt
type ChargeResult struct {
	Approved      bool
	TransactionID string
	DeclineReason string
}

// PaymentGateway is the payment capability the orchestrator dispatches to.
// Charge is synchronous and must never be called while seat state is being
// mutated; the orchestrator charges against an already-held reservation.
type PaymentGateway interface {
	Charge(req ChargeRequest) (*ChargeResult, error)
}

// MockPaymentGateway simulates a mobile money / card processor. Outcomes
// are random at the configured success rate, which lets load tests and
// the decline path run without a real processor.
type MockPaymentGateway struct {
	successRate float64
	logger      *logrus.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockPaymentGateway creates a mock gateway approving charges at the
// given rate (0.0 to 1.0)
func NewMockPaymentGateway(cfg config.PaymentConfig, logger *logrus.Logger) *MockPaymentGateway {
	return &MockPaymentGateway{
		successRate: cfg.SuccessRate,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Charge resolves a payment attempt against the configured success rate
func (g *MockPaymentGateway) Charge(req ChargeRequest) (*ChargeResult, error) {
	g.mu.Lock()
	roll := g.rng.Float64()
	g.mu.Unlock()

	if roll >= g.successRate {
		g.logger.WithFields(logrus.Fields{
			"booking_id": req.BookingID,
			"amount":     req.Amount,
			"method":     req.Method,
		}).Info("Mock payment declined")
		return &ChargeResult{
			Approved:      false,
			DeclineReason: "insufficient funds",
		}, nil
	}

	txID := fmt.Sprintf("MOCK-%s", uuid.New().String()[:8])
	g.logger.WithFields(logrus.Fields{
		"booking_id":     req.BookingID,
		"amount":         req.Amount,
		"currency":       req.Currency,
		"method":         req.Method,
		"transaction_id": txID,
	}).Info("Mock payment approved")

	return &ChargeResult{Approved: true, TransactionID: txID}, nil
}
