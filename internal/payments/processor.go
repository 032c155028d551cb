package payments

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/travel-bookings/internal/domain"
	"github.com/robertarktes/travel-bookings/internal/observability"
)

// Store is the slice of the repository the processor needs.
type Store interface {
	InsertPayment(ctx context.Context, p domain.Payment) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, gatewayTxnID string, bookingIDs []uuid.UUID) error
	MarkPaymentRefunded(ctx context.Context, id uuid.UUID) error
}

// Processor owns the Payment lifecycle around the gateway seam.
type Processor struct {
	store   Store
	gateway Gateway
	logger  observability.Logger
}

func NewProcessor(store Store, gateway Gateway, logger observability.Logger) *Processor {
	return &Processor{store: store, gateway: gateway, logger: logger}
}

// Initiate creates the payment row, forcing status PENDING regardless of what
// the caller filled in.
func (p *Processor) Initiate(ctx context.Context, payment domain.Payment) (uuid.UUID, error) {
	payment.Status = domain.PaymentPending
	if err := p.store.InsertPayment(ctx, payment); err != nil {
		return uuid.Nil, errors.Mark(err, domain.ErrPaymentInit)
	}
	return payment.ID, nil
}

// UpdateStatus does not validate the prior status; the orchestrator calls it
// only in the designed sequence.
func (p *Processor) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, gatewayTxnID string) error {
	return p.store.UpdatePaymentStatus(ctx, id, status, gatewayTxnID, nil)
}

// Execute drives the gateway. A successful charge is recorded as SUCCESS with
// the gateway transaction id before anything else happens; a decline (or a
// gateway timeout, treated as declined) is recorded as FAILED.
func (p *Processor) Execute(ctx context.Context, id uuid.UUID, amount float64, method string) (string, error) {
	txnID, err := p.gateway.Authorize(ctx, amount, method)
	if err != nil {
		if updErr := p.store.UpdatePaymentStatus(ctx, id, domain.PaymentFailed, "", nil); updErr != nil {
			p.logger.Error("failed to record payment failure", updErr)
		}
		return "", errors.Mark(err, domain.ErrPaymentDeclined)
	}

	if err := p.gateway.Capture(ctx, txnID, amount); err != nil {
		if updErr := p.store.UpdatePaymentStatus(ctx, id, domain.PaymentFailed, txnID, nil); updErr != nil {
			p.logger.Error("failed to record payment failure", updErr)
		}
		return "", errors.Mark(err, domain.ErrPaymentDeclined)
	}

	if err := p.store.UpdatePaymentStatus(ctx, id, domain.PaymentSuccess, txnID, nil); err != nil {
		return "", err
	}
	return txnID, nil
}

// AttachBookings pins the booking set created by a successful checkout to the
// payment record.
func (p *Processor) AttachBookings(ctx context.Context, id uuid.UUID, bookingIDs []uuid.UUID) error {
	return p.store.UpdatePaymentStatus(ctx, id, domain.PaymentSuccess, "", bookingIDs)
}

// Refund is the compensating action: best-effort gateway refund, then the
// durable REFUNDED mark. The mark is what the invariants depend on.
func (p *Processor) Refund(ctx context.Context, id uuid.UUID, txnID string, amount float64) error {
	if err := p.gateway.Refund(ctx, txnID, amount); err != nil {
		p.logger.WithField("payment_id", id).Error("gateway refund failed, recording refund mark anyway", err)
	}
	return p.store.MarkPaymentRefunded(ctx, id)
}
