// Package settlement computes the commission split for completed
// interventions and reconciles external payment status into the
// intervention lifecycle.
package settlement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/example/fixlite/internal/intervention/domain"
)

// commissionBasisPoints is the fixed platform cut: 10%.
const commissionBasisPoints = 1000

// CheckoutRequest is the session payload sent to the processor.
type CheckoutRequest struct {
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is the processor's handle for a hosted checkout.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// Processor is the external payment collaborator.
type Processor interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	GetStatus(ctx context.Context, sessionID string) (domain.PaymentStatus, error)
}

// Engine ties checkout sessions to interventions and drives paid sessions
// to completion.
type Engine struct {
	interventions domain.InterventionRepository
	payments      domain.PaymentRepository
	processor     Processor
	events        domain.EventPublisher
	clock         domain.Clock
	currency      string
}

// NewEngine constructs an Engine. Currency defaults to eur.
func NewEngine(interventions domain.InterventionRepository, payments domain.PaymentRepository, processor Processor, events domain.EventPublisher, clock domain.Clock, currency string) *Engine {
	if currency == "" {
		currency = "eur"
	}
	return &Engine{
		interventions: interventions,
		payments:      payments,
		processor:     processor,
		events:        events,
		clock:         clock,
		currency:      currency,
	}
}

// CommissionSplit returns the platform commission (10%, rounded half-up on
// cents) and the technician payout. The two always sum to amountCents.
func CommissionSplit(amountCents int64) (commissionCents, technicianCents int64) {
	commissionCents = (amountCents*commissionBasisPoints + 5000) / 10000
	technicianCents = amountCents - commissionCents
	return commissionCents, technicianCents
}

// CheckoutResult is returned to the caller for redirecting to the hosted
// checkout page.
type CheckoutResult struct {
	SessionID   string
	RedirectURL string
}

// CreateCheckout opens a checkout session for a priced intervention and
// persists the pending transaction. Only the owning user may pay. Repeat
// invocations intentionally open fresh sessions, each with its own record.
func (e *Engine) CreateCheckout(ctx context.Context, interventionID, callerID uuid.UUID, originURL string) (CheckoutResult, error) {
	iv, err := e.interventions.GetByID(ctx, interventionID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if iv.UserID != callerID {
		return CheckoutResult{}, fmt.Errorf("intervention %s: %w", interventionID, domain.ErrForbidden)
	}
	if iv.FinalPriceCents == nil {
		return CheckoutResult{}, fmt.Errorf("final price not defined: %w", domain.ErrPreconditionFailed)
	}

	amount := *iv.FinalPriceCents
	commission, technician := CommissionSplit(amount)

	metadata := map[string]string{
		"intervention_id": interventionID.String(),
		"user_id":         callerID.String(),
		"commission_rate": "0.10",
	}
	if iv.TechnicianID != nil {
		metadata["technician_id"] = iv.TechnicianID.String()
	}

	session, err := e.processor.CreateSession(ctx, CheckoutRequest{
		AmountCents: amount,
		Currency:    e.currency,
		SuccessURL:  originURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   originURL + "/interventions",
		Metadata:    metadata,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create checkout session: %w: %v", domain.ErrUpstream, err)
	}

	now := e.clock.Now()
	tx := domain.PaymentTransaction{
		ID:              uuid.New(),
		InterventionID:  interventionID,
		UserID:          callerID,
		TechnicianID:    iv.TechnicianID,
		SessionID:       session.SessionID,
		AmountCents:     amount,
		CommissionCents: commission,
		TechnicianCents: technician,
		Currency:        e.currency,
		Status:          domain.PaymentPending,
		Metadata:        metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := e.payments.Create(ctx, tx); err != nil {
		return CheckoutResult{}, fmt.Errorf("record transaction: %w", err)
	}

	_ = e.events.Publish(ctx, domain.InterventionEvent{
		InterventionID: interventionID,
		Type:           domain.EventCheckoutCreated,
		Payload: map[string]any{
			"session_id":       session.SessionID,
			"amount_cents":     strconv.FormatInt(amount, 10),
			"commission_cents": strconv.FormatInt(commission, 10),
		},
	})

	return CheckoutResult{SessionID: session.SessionID, RedirectURL: session.RedirectURL}, nil
}

// Reconcile pulls the authoritative status from the processor and applies
// it locally. A processor failure leaves both records untouched. Observing
// paid drives the intervention to completed; repeating the call after that
// is a no-op, not an error.
func (e *Engine) Reconcile(ctx context.Context, sessionID string) (domain.PaymentStatus, error) {
	tx, err := e.payments.GetBySessionID(ctx, sessionID)
	if err != nil {
		return "", err
	}

	status, err := e.processor.GetStatus(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("checkout status %s: %w: %v", sessionID, domain.ErrUpstream, err)
	}

	now := e.clock.Now()
	if _, err := e.payments.UpdateStatus(ctx, sessionID, status, now); err != nil {
		return "", fmt.Errorf("apply payment status: %w", err)
	}

	if status == domain.PaymentPaid {
		if err := e.completeIntervention(ctx, tx.InterventionID, now); err != nil {
			return "", err
		}
	}

	_ = e.events.Publish(ctx, domain.InterventionEvent{
		InterventionID: tx.InterventionID,
		Type:           domain.EventPaymentReconciled,
		Payload:        map[string]any{"session_id": sessionID, "payment_status": string(status)},
	})

	return status, nil
}

func (e *Engine) completeIntervention(ctx context.Context, interventionID uuid.UUID, now time.Time) error {
	iv, err := e.interventions.GetByID(ctx, interventionID)
	if err != nil {
		return err
	}
	if iv.Status == domain.StatusCompleted {
		return nil
	}
	iv.Status = domain.StatusCompleted
	if iv.CompletedAt == nil {
		iv.CompletedAt = &now
	}
	if _, err := e.interventions.Update(ctx, iv); err != nil {
		return fmt.Errorf("complete intervention: %w", err)
	}
	return nil
}
